package main

import (
	"log"

	"github.com/malivvan/opgpcard/cmd/cli"
)

var version = "dev"

func main() {
	if err := cli.New(version).Execute(); err != nil {
		log.Fatal(err)
	}
}
