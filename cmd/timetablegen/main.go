// Command timetablegen generates a flight schedule CSV for development and
// test environments.
package main

import (
	"flag"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/BTreeMap/FlightDesk/internal/models"
	"github.com/BTreeMap/FlightDesk/internal/timetable"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	out := flag.String("out", "", "output file, empty for stdout")
	cities := flag.String("cities", "Москва,Санкт-Петербург,Тверь,Берлин,Прага,Хельсинки", "comma-separated city list")
	seed := flag.Uint64("seed", 0, "random seed, 0 for a random one")
	start := flag.String("start", "", "first day for one-off departures in DD-MM-YYYY format, empty for today")
	days := flag.Int("days", 60, "span in days for one-off departures")
	flag.Parse()

	var opts []timetable.Option
	if *seed != 0 {
		opts = append(opts, timetable.WithSeed(*seed))
	}
	if *start != "" {
		parsed, err := time.ParseInLocation(models.DateLayout, *start, time.Local)
		if err != nil {
			slog.Error("Invalid start date", "start", *start, "error", err)
			os.Exit(1)
		}
		opts = append(opts, timetable.WithStart(parsed))
	}
	opts = append(opts, timetable.WithDays(*days))

	cityList := strings.Split(*cities, ",")
	for i := range cityList {
		cityList[i] = strings.TrimSpace(cityList[i])
	}

	if *out == "" {
		g := timetable.NewGenerator(opts...)
		if err := timetable.WriteCSV(os.Stdout, g.Generate(cityList)); err != nil {
			slog.Error("Failed to write dataset", "error", err)
			os.Exit(1)
		}
		return
	}
	if err := timetable.WriteFile(*out, cityList, opts...); err != nil {
		slog.Error("Failed to write dataset", "error", err, "out", *out)
		os.Exit(1)
	}
	slog.Info("Dataset written", "out", *out)
}
