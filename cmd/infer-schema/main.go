// Command infer-schema reads a tabular file, infers the logical type of
// every column, and prints the schema as an ordered JSON object.
//
//	infer-schema -in flights.csv
//	infer-schema -in flights.json.gz -format json -cast
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"unicode/utf8"

	"github.com/jimmy-nguyen-data-science/predicting-flight-delays/internal/cast"
	"github.com/jimmy-nguyen-data-science/predicting-flight-delays/internal/infer"
	"github.com/jimmy-nguyen-data-science/predicting-flight-delays/internal/source"
)

func main() {
	var (
		in        string
		format    string
		sample    int
		delimiter string
		header    bool
		applyCast bool
	)
	flag.StringVar(&in, "in", "", "input file; .gz is decompressed")
	flag.StringVar(&format, "format", "csv", "input format: csv|json|jsonl|html")
	flag.IntVar(&sample, "sample", 0, "rows sampled per column (0 uses the default)")
	flag.StringVar(&delimiter, "delimiter", ",", "csv field delimiter")
	flag.BoolVar(&header, "header", true, "csv first row is a header")
	flag.BoolVar(&applyCast, "cast", false, "apply the casts and report physical column types")
	flag.Parse()

	log.SetFlags(0)
	log.SetPrefix("infer-schema: ")

	if in == "" {
		flag.Usage()
		os.Exit(2)
	}
	f, err := source.ReadFile(in, source.Options{
		Format:    parseFormat(format),
		Delimiter: parseDelimiter(delimiter),
		Header:    header,
	})
	if err != nil {
		log.Fatalf("read %s: %v", in, err)
	}

	sch := infer.Infer(f, sample)
	b, err := json.MarshalIndent(sch, "", "  ")
	if err != nil {
		log.Fatalf("encode schema: %v", err)
	}
	fmt.Println(string(b))

	if !applyCast {
		return
	}
	cf, err := cast.Apply(f, sch)
	if err != nil {
		log.Fatalf("cast: %v", err)
	}
	for _, name := range cf.Names() {
		t, _ := cf.Type(name)
		fmt.Printf("%s\t%s\n", name, t)
	}
}

func parseFormat(s string) source.Format {
	format, err := source.ParseFormat(s)
	if err != nil {
		log.Fatalf("%v", err)
	}
	return format
}

func parseDelimiter(s string) rune {
	if s == "" {
		return ','
	}
	if utf8.RuneCountInString(s) != 1 {
		log.Fatalf("delimiter must be a single character, got %q", s)
	}
	r, _ := utf8.DecodeRuneInString(s)
	return r
}
