package main

import (
	"github.com/immxrtalbeast/axenix_call/internal/cli"
	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load(".env")
	cli.Execute()
}
