package main

import "github.com/MeKo-Tech/surfacegen/internal/cmd"

func main() {
	cmd.Execute()
}
