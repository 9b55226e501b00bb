package main

import (
	"flag"
	"os"

	"github.com/BurntSushi/toml"

	"github.com/Schoggi0815/spellhaven/game"
)

// Writes the default configuration so it can be edited by hand.
func main() {
	out := flag.String("o", "config.toml", "output file")
	force := flag.Bool("f", false, "overwrite an existing file")
	flag.Parse()

	mode := os.O_WRONLY | os.O_CREATE | os.O_EXCL
	if *force {
		mode = os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	}
	f, err := os.OpenFile(*out, mode, 0o644)
	if err != nil {
		panic(err)
	}
	defer f.Close()

	if err := toml.NewEncoder(f).Encode(game.DefaultConfig()); err != nil {
		panic(err)
	}
}
