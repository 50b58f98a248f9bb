// Command comprl-agent is a reference agent for the duel game. It bids a
// random value every round, which makes it a useful sparring partner for
// testing servers and other agents.
package main

import (
	"context"
	"flag"
	"log"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/comprl/comprl/client"
)

type duelAgent struct {
	client.Base
	rng *rand.Rand
}

func (a *duelAgent) Step(observation []float64) []float64 {
	return []float64{a.rng.Float64()}
}

func (a *duelAgent) OnStart(gameID string) {
	log.Printf("Game started: %s", gameID)
}

func (a *duelAgent) OnEnd(won bool, stats []float64) {
	if won {
		log.Printf("Game won (stats: %v)", stats)
	} else {
		log.Printf("Game lost (stats: %v)", stats)
	}
}

func (a *duelAgent) OnMessage(msg string) {
	log.Printf("Server: %s", msg)
}

func (a *duelAgent) OnError(msg string) {
	log.Printf("Server error: %s", msg)
}

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	url := flag.String("url", envOr("COMPRL_SERVER_URL", "ws://localhost:8080/ws"), "server websocket URL")
	token := flag.String("token", os.Getenv("COMPRL_ACCESS_TOKEN"), "access token")
	flag.Parse()

	if *token == "" {
		log.Fatal("No access token: pass -token or set COMPRL_ACCESS_TOKEN")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	agent := &duelAgent{
		Base: client.Base{Token: *token},
		rng:  rand.New(rand.NewSource(time.Now().UnixNano())),
	}

	log.Printf("Connecting to %s", *url)
	if err := client.New(*url, agent).Run(ctx); err != nil && ctx.Err() == nil {
		log.Fatalf("Agent stopped: %v", err)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
