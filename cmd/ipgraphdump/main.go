// Copyright (c) 2025 ipgraph contributors
// SPDX-License-Identifier: MIT

// Command ipgraphdump evaluates one IP address against a component-graph
// data file and prints the resulting profile or profile-group offset.
package main

import (
	"flag"
	"log"

	"github.com/gaissmai/ipgraph"
)

func main() {
	log.SetFlags(0)

	var (
		path      = flag.String("file", "", "component graph data file")
		component = flag.Uint("component", 0, "component id")
		ipFlag    = flag.String("ip", "", "IP address to evaluate")
		trace     = flag.Bool("trace", false, "print a step-by-step trace")
		length    = flag.Uint("outer-length", 0, "byte length of the outer IpiCgInfo collection")
		count     = flag.Uint("outer-count", 0, "record count of the outer IpiCgInfo collection")
		start     = flag.Uint("outer-start", 0, "start offset of the outer IpiCgInfo collection")
	)
	flag.Parse()

	if *path == "" || *ipFlag == "" {
		log.Fatal("usage: ipgraphdump -file <path> -ip <addr> -component <id> -outer-length N -outer-count N [-outer-start N] [-trace]")
	}

	ip, err := ipgraph.ParseIPAddress(*ipFlag)
	if err != nil {
		log.Fatalf("parsing ip %q: %v", *ipFlag, err)
	}

	outer := ipgraph.CollectionHeader{
		Length:        uint32(*length),
		Count:         uint32(*count),
		StartPosition: uint32(*start),
	}

	graphs, err := ipgraph.CreateFromFile(*path, outer, ipgraph.CollectionConfig{})
	if err != nil {
		log.Fatalf("opening %s: %v", *path, err)
	}
	defer graphs.Free()

	if *trace {
		result, traceOut := graphs.EvaluateTrace(uint8(*component), ip, 0)
		log.Print(traceOut)
		log.Printf("offset=%d isGroupOffset=%v", result.Offset, result.IsGroupOffset)
		return
	}

	result := graphs.Evaluate(uint8(*component), ip)
	log.Printf("offset=%d isGroupOffset=%v", result.Offset, result.IsGroupOffset)
}
