package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/avasiliev/accountkeeper/internal/client/cli"
)

func main() {
	serverURL := flag.String("s", "http://localhost:8080", "accountkeeper server base URL")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	app := cli.NewApp(cli.NewAPIClient(*serverURL), os.Stdin, os.Stdout)
	if err := app.Run(ctx); err != nil {
		log.Fatalf("%v", err)
	}
}
