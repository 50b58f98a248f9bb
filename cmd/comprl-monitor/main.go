// Command comprl-monitor renders the status file written by the server as a
// periodically refreshing terminal view.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"sort"
	"time"

	"github.com/comprl/comprl/internal/monitor"
)

func main() {
	log.SetFlags(0)

	path := flag.String("path", "/dev/shm/comprl_monitor", "status file written by the server")
	interval := flag.Duration("interval", 2*time.Second, "refresh interval")
	once := flag.Bool("once", false, "print one snapshot and exit")
	flag.Parse()

	if *once {
		if err := show(*path, false); err != nil {
			log.Fatal(err)
		}
		return
	}

	for {
		if err := show(*path, true); err != nil {
			// The server may be mid-write or not running yet.
			fmt.Printf("\nwaiting for status file: %v\n", err)
		}
		time.Sleep(*interval)
	}
}

func show(path string, clearScreen bool) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	snap, err := monitor.Parse(string(data))
	if err != nil {
		return err
	}
	if clearScreen {
		fmt.Print("\033[2J\033[H")
	}
	render(snap)
	return nil
}

func render(snap *monitor.Snapshot) {
	fmt.Printf("comprl server status, last update %s\n", snap.Timestamp.Format("15:04:05"))
	if age := time.Since(snap.Timestamp); age > 30*time.Second {
		fmt.Printf("WARNING: snapshot is %s old, is the server running?\n", age.Round(time.Second))
	}

	fmt.Printf("\nConnected players (%d):\n", len(snap.Players))
	for _, p := range snap.Players {
		fmt.Printf("  %-24s %s\n", p.Username, p.PlayerID)
	}

	fmt.Printf("\nGames (%d):\n", len(snap.Games))
	for _, g := range snap.Games {
		fmt.Printf("  %s\n", g.GameID)
		fmt.Printf("    %s\n", g.Player1)
		fmt.Printf("    %s\n", g.Player2)
	}

	fmt.Printf("\nPlayers in queue (%d):\n", len(snap.Queue))
	for _, q := range snap.Queue {
		fmt.Printf("  %-24s waiting %s\n", q.Username, time.Since(q.Since).Round(time.Second))
	}

	qualities := append([]monitor.Quality(nil), snap.Qualities...)
	sort.Slice(qualities, func(i, j int) bool { return qualities[i].Score > qualities[j].Score })

	fmt.Println("\nMatch quality scores:")
	for _, q := range qualities {
		fmt.Printf("  %s vs %s: %.4f\n", q.User1, q.User2, q.Score)
	}
}
