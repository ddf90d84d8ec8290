package main

//go-build: CGO_ENABLED=0

import (
	"github.com/robotalks/aura.go/pkg/cli/sh"
)

func main() {
	sh.Main()
}
