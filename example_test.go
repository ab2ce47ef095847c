package mmdb_test

import (
	"fmt"
	"net/netip"

	"github.com/ipgrid/mmdb"
	"github.com/ipgrid/mmdb/internal/mmdbtest"
)

func ExampleReader_LookupPaths() {
	db := mmdbtest.New(6, 28)
	db.Insert(netip.MustParsePrefix("81.2.69.160/32"), map[string]any{
		"city": map[string]any{
			"names": map[string]any{"en": "London"},
		},
		"location": map[string]any{"latitude": 51.5142},
	})

	reader, err := mmdb.FromBytes(db.Bytes())
	if err != nil {
		panic(err)
	}

	values, err := reader.LookupPaths(
		netip.MustParseAddr("81.2.69.160"),
		"city.names.en", "location.latitude",
	)
	if err != nil {
		panic(err)
	}

	fmt.Println(values["city.names.en"].Native())
	fmt.Println(values["location.latitude"].Native())
	// Output:
	// London
	// 51.5142
}

func ExampleReader_Networks() {
	db := mmdbtest.New(4, 24)
	db.Insert(netip.MustParsePrefix("1.1.1.0/24"), map[string]any{"name": "a"})
	db.Insert(netip.MustParsePrefix("2.2.0.0/16"), map[string]any{"name": "b"})

	reader, err := mmdb.FromBytes(db.Bytes())
	if err != nil {
		panic(err)
	}

	for prefix, result := range reader.Networks() {
		name, _, err := result.DecodePath("name")
		if err != nil {
			panic(err)
		}
		fmt.Printf("%s %v\n", prefix, name.Native())
	}
	// Output:
	// 1.1.1.0/24 a
	// 2.2.0.0/16 b
}
