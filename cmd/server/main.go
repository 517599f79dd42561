package main

import "github.com/tripwell/backoffice/internal/server"

func main() {
	s := server.NewServer()
	s.Run()
}
