package main

import "peoplemeet-client/internal/app"

func main() {
	app.Execute()
}
