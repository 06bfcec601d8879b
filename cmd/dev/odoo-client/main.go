package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/garnizeh/simplymeet/internal/config"
	"github.com/garnizeh/simplymeet/internal/icsexport"
	"github.com/garnizeh/simplymeet/pkg/models"
	"github.com/garnizeh/simplymeet/pkg/odoo"
)

// Manual smoke test against a live Odoo: lists employees, or the meetings of
// one login on a day.
func main() {
	configPath := flag.String("config", "", "Path to config YAML file")
	userID := flag.Int64("user", 0, "Odoo user id whose meetings to list; lists employees when zero")
	date := flag.String("date", "", "Day to list (YYYY-MM-DD), defaults to today")
	ics := flag.Bool("ics", false, "Print meetings as iCalendar")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatal(err)
	}
	if !cfg.Odoo.IsConfigured() {
		log.Fatal("set ODOO_URL, ODOO_DB, ODOO_USERNAME and ODOO_PASSWORD")
	}

	loc := cfg.Location()
	client, err := odoo.NewDefaultClient(cfg.Odoo, odoo.WithLocation(loc))
	if err != nil {
		log.Fatal(err)
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	if *userID == 0 {
		if err := listEmployees(ctx, client); err != nil {
			log.Fatal(err)
		}
		return
	}

	day := time.Now().In(loc)
	if *date != "" {
		if day, err = time.ParseInLocation(models.DateKeyLayout, *date, loc); err != nil {
			log.Fatal(err)
		}
	}
	meetings, err := client.ListMeetingsForDay(ctx, *userID, day)
	if err != nil {
		log.Fatal(err)
	}
	if *ics {
		fmt.Print(icsexport.Encode(meetings, ""))
		return
	}
	for _, m := range meetings {
		fmt.Printf("%s  %-40s %3d min  %s\n", m.StartClock(), m.Title, m.DurationMinutes(), m.MeetingURL)
	}
	fmt.Fprintf(os.Stderr, "%d meetings on %s\n", len(meetings), models.DateKey(day))
}

func listEmployees(ctx context.Context, client *odoo.Client) error {
	employees, err := client.ListEmployees(ctx)
	if err != nil {
		return err
	}
	for _, e := range employees {
		fmt.Printf("%6d  user=%-6d %-30s %s\n", e.ID, e.UserID, e.Name, e.WorkEmail)
	}
	return nil
}
