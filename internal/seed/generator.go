// Package seed builds the demo entertainment dataset: a small star
// schema of movies, cinemas, streaming channels, and the showtime and
// streaming facts that reference them.
package seed

import (
	"fmt"
	"math"
	"math/rand"
	"time"
)

type ContentRow struct {
	ContentID   int64    `parquet:"content_id"`
	Title       string   `parquet:"title"`
	ContentType string   `parquet:"content_type"`
	ReleaseYear int32    `parquet:"release_year"`
	Genres      []string `parquet:"genres,list"`
	Languages   []string `parquet:"languages,list"`
	RatingScore float64  `parquet:"rating_score"`
}

type CinemaRow struct {
	CinemaID int64  `parquet:"cinema_id"`
	Name     string `parquet:"name"`
	City     string `parquet:"city"`
	Region   string `parquet:"region"`
	Capacity int32  `parquet:"capacity"`
}

type ChannelRow struct {
	ChannelID    int64   `parquet:"channel_id"`
	Name         string  `parquet:"name"`
	Platform     string  `parquet:"platform"`
	MonthlyPrice float64 `parquet:"monthly_price"`
}

type ShowtimeRow struct {
	ShowtimeID  int64   `parquet:"showtime_id"`
	ContentID   int64   `parquet:"content_id"`
	CinemaID    int64   `parquet:"cinema_id"`
	ShowDate    string  `parquet:"show_date"`
	Attendance  int32   `parquet:"attendance"`
	TicketPrice float64 `parquet:"ticket_price"`
}

type StreamingRow struct {
	StreamingID   int64   `parquet:"streaming_id"`
	ContentID     int64   `parquet:"content_id"`
	ChannelID     int64   `parquet:"channel_id"`
	StreamDate    string  `parquet:"stream_date"`
	WatchHours    float64 `parquet:"watch_hours"`
	UniqueViewers int32   `parquet:"unique_viewers"`
}

var (
	titleAdjectives = []string{"Silent", "Crimson", "Endless", "Hidden", "Golden", "Broken", "Distant", "Electric", "Frozen", "Midnight"}
	titleNouns      = []string{"Horizon", "Empire", "Garden", "Signal", "Voyage", "Echo", "Harbor", "Crown", "Orbit", "Mirage"}
	genrePool       = []string{"drama", "comedy", "action", "thriller", "documentary", "animation", "romance", "sci-fi"}
	languagePool    = []string{"en", "de", "fr", "es", "ja", "pt"}
	cityRegions     = map[string]string{
		"Vienna": "east", "Graz": "south", "Linz": "north", "Salzburg": "west", "Innsbruck": "west", "Klagenfurt": "south",
	}
	channelNames = []string{"StreamFlix", "CineMax Go", "PrimeView", "Arthouse+", "KidsPlay", "DocuStream"}
	platforms    = []string{"web", "mobile", "tv"}
)

// Generator produces the dataset deterministically from one seed, so
// repeated runs register byte-identical parquet files.
type Generator struct {
	rnd   *rand.Rand
	start time.Time
	days  int
}

func NewGenerator(seed int64) *Generator {
	return &Generator{
		rnd:   rand.New(rand.NewSource(seed)),
		start: time.Date(2026, time.June, 1, 0, 0, 0, 0, time.UTC),
		days:  90,
	}
}

func (g *Generator) Contents(count int) []ContentRow {
	rows := make([]ContentRow, 0, count)
	for i := 0; i < count; i++ {
		contentType := "movie"
		if g.rnd.Intn(100) < 30 {
			contentType = "show"
		}
		rows = append(rows, ContentRow{
			ContentID:   int64(i + 1),
			Title:       fmt.Sprintf("%s %s", pickOne(g.rnd, titleAdjectives), pickOne(g.rnd, titleNouns)),
			ContentType: contentType,
			ReleaseYear: int32(1985 + g.rnd.Intn(41)),
			Genres:      pickSome(g.rnd, genrePool, 1+g.rnd.Intn(3)),
			Languages:   pickSome(g.rnd, languagePool, 1+g.rnd.Intn(2)),
			RatingScore: round1(4 + g.rnd.Float64()*6),
		})
	}
	return rows
}

func (g *Generator) Cinemas() []CinemaRow {
	rows := make([]CinemaRow, 0, len(cityRegions))
	id := int64(0)
	for _, city := range []string{"Vienna", "Graz", "Linz", "Salzburg", "Innsbruck", "Klagenfurt"} {
		id++
		rows = append(rows, CinemaRow{
			CinemaID: id,
			Name:     fmt.Sprintf("%s Filmpalast", city),
			City:     city,
			Region:   cityRegions[city],
			Capacity: int32(120 + g.rnd.Intn(480)),
		})
	}
	return rows
}

func (g *Generator) Channels() []ChannelRow {
	rows := make([]ChannelRow, 0, len(channelNames))
	for i, name := range channelNames {
		rows = append(rows, ChannelRow{
			ChannelID:    int64(i + 1),
			Name:         name,
			Platform:     pickOne(g.rnd, platforms),
			MonthlyPrice: round2(5 + g.rnd.Float64()*20),
		})
	}
	return rows
}

func (g *Generator) Showtimes(count int, contents []ContentRow, cinemas []CinemaRow) []ShowtimeRow {
	rows := make([]ShowtimeRow, 0, count)
	for i := 0; i < count; i++ {
		cinema := cinemas[g.rnd.Intn(len(cinemas))]
		attendance := int32(g.rnd.Intn(int(cinema.Capacity) + 1))
		rows = append(rows, ShowtimeRow{
			ShowtimeID:  int64(i + 1),
			ContentID:   contents[g.rnd.Intn(len(contents))].ContentID,
			CinemaID:    cinema.CinemaID,
			ShowDate:    g.randomDate(),
			Attendance:  attendance,
			TicketPrice: round2(8 + g.rnd.Float64()*9),
		})
	}
	return rows
}

func (g *Generator) Streamings(count int, contents []ContentRow, channels []ChannelRow) []StreamingRow {
	rows := make([]StreamingRow, 0, count)
	for i := 0; i < count; i++ {
		viewers := int32(10 + g.rnd.Intn(5000))
		rows = append(rows, StreamingRow{
			StreamingID:   int64(i + 1),
			ContentID:     contents[g.rnd.Intn(len(contents))].ContentID,
			ChannelID:     channels[g.rnd.Intn(len(channels))].ChannelID,
			StreamDate:    g.randomDate(),
			WatchHours:    round2(float64(viewers) * (0.4 + g.rnd.Float64()*1.8)),
			UniqueViewers: viewers,
		})
	}
	return rows
}

func (g *Generator) randomDate() string {
	return g.start.AddDate(0, 0, g.rnd.Intn(g.days)).Format("2006-01-02")
}

func pickOne(r *rand.Rand, values []string) string {
	return values[r.Intn(len(values))]
}

func pickSome(r *rand.Rand, values []string, count int) []string {
	if count > len(values) {
		count = len(values)
	}
	picked := make([]string, 0, count)
	seen := map[string]struct{}{}
	for len(picked) < count {
		value := values[r.Intn(len(values))]
		if _, ok := seen[value]; ok {
			continue
		}
		seen[value] = struct{}{}
		picked = append(picked, value)
	}
	return picked
}

func round1(value float64) float64 {
	return math.Round(value*10) / 10
}

func round2(value float64) float64 {
	return math.Round(value*100) / 100
}
