// Command mmdblookup looks up an IP address in a MaxMind DB file and
// prints the record, or only the requested dotted paths of it, as JSON.
//
// Usage:
//
//	mmdblookup -db GeoIP2-City.mmdb 81.2.69.160 [city.names.en ...]
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/netip"
	"os"

	"github.com/ipgrid/mmdb"
)

var (
	dbPath  = flag.String("db", "GeoLite2-City.mmdb", "path to the MaxMind DB file")
	network = flag.Bool("network", false, "also print the matched network prefix")
)

func main() {
	log.SetFlags(0)
	log.SetPrefix("mmdblookup: ")

	flag.Parse()
	args := flag.Args()
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "usage: mmdblookup [-db file] [-network] ip [path ...]")
		os.Exit(2)
	}

	ip, err := netip.ParseAddr(args[0])
	if err != nil {
		log.Fatalf("invalid IP address %q: %v", args[0], err)
	}

	reader, err := mmdb.Open(*dbPath)
	if err != nil {
		log.Fatal(err)
	}
	defer reader.Close()

	result := reader.Lookup(ip)
	if err := result.Err(); err != nil {
		log.Fatal(err)
	}
	if *network {
		fmt.Fprintf(os.Stderr, "network: %s\n", result.Prefix())
	}
	if !result.Found() {
		log.Fatalf("no record for %s", ip)
	}

	var out any
	if len(args) == 1 {
		record, err := result.Decode()
		if err != nil {
			log.Fatal(err)
		}
		out = record.Native()
	} else {
		values, err := result.DecodePaths(args[1:]...)
		if err != nil {
			log.Fatal(err)
		}
		byPath := make(map[string]any, len(values))
		for path, value := range values {
			byPath[path] = value.Native()
		}
		out = byPath
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		log.Fatal(err)
	}
}
