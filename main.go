package main

import (
	"os"

	"email-dispatcher/internal/app"
)

func main() {
	if err := app.Run(); err != nil {
		os.Exit(1)
	}
}
