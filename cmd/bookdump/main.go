// Command bookdump prints the persisted engine state as JSON. It reads
// the store directly and must not run against a live engine's data
// directory.
package main

import (
	"encoding/json"
	"flag"
	"log"
	"os"
	"path/filepath"

	"matchbook/domain/book"
	"matchbook/store"
)

type dump struct {
	Meta   store.Meta          `json:"meta"`
	Books  []*store.BookRecord `json:"books"`
	Trades []book.Trade        `json:"trades,omitempty"`
}

func main() {
	dataDir := flag.String("data", "data", "engine data directory")
	instrument := flag.String("instrument", "", "restrict output to one instrument")
	withTrades := flag.Bool("trades", false, "include the trade log")
	flag.Parse()

	st, err := store.Open(filepath.Join(*dataDir, "state"))
	if err != nil {
		log.Fatalf("open store: %v", err)
	}
	defer st.Close()

	var out dump
	out.Meta, err = st.LoadMeta()
	if err != nil {
		log.Fatalf("load meta: %v", err)
	}

	err = st.LoadBooks(func(rec *store.BookRecord) error {
		if *instrument != "" && rec.Instrument != *instrument {
			return nil
		}
		out.Books = append(out.Books, rec)
		return nil
	})
	if err != nil {
		log.Fatalf("load books: %v", err)
	}

	if *withTrades {
		out.Trades, err = st.Trades(*instrument)
		if err != nil {
			log.Fatalf("load trades: %v", err)
		}
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(&out); err != nil {
		log.Fatalf("encode: %v", err)
	}
}
