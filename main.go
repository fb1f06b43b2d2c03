package main

import (
	"log"

	"github.com/hadron-robotics/hadron_rover/internal/app"
	"github.com/hadron-robotics/hadron_rover/internal/config"
)

func main() {
	cfg := config.GetConfig()

	app := app.NewApp(cfg)

	err := app.Start()
	if err != nil {
		log.Printf("vehicle shutdown with error: %s", err.Error())
	} else {
		log.Println("vehicle shutdown successfully")
	}
}
