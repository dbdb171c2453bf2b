// Command vmrun loads, links and runs a Letin VM program image.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"letin/vm"
	"letin/vm/diag"
	"letin/vm/gc"
	"letin/vm/interp"
	"letin/vm/lazy"
	"letin/vm/link"
	"letin/vm/load"
	"letin/vm/memo"
	"letin/vm/native"
	"letin/vm/nativeposix"
)

func main() {
	log.SetFlags(0)
	log.SetPrefix("vmrun: ")

	memProfile := flag.String("memprofile", "", "write a heap/memo pprof profile to this file after the run")
	noPosix := flag.Bool("no-posix", false, "don't link the vm/nativeposix native library")
	maxConcurrentForce := flag.Int64("max-concurrent-force", 64, "max threads concurrently holding a thunk mutex")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: vmrun [flags] image.lb\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}

	b, err := os.ReadFile(flag.Arg(0))
	if err != nil {
		log.Fatalf("read image: %v", err)
	}

	img, err := load.Load(b)
	if err != nil {
		log.Fatalf("load: %v", err)
	}

	heap := gc.NewHeap(gc.DefaultConfig())

	var natives native.Handler
	var resolver link.NativeResolver
	if !*noPosix {
		m := native.NewMulti(nativeposix.NewHandler())
		natives = m
		resolver = m
	}

	prog, err := link.Link(img, heap, resolver)
	if err != nil {
		log.Fatalf("link: %v", err)
	}
	if prog.Library {
		log.Fatalf("run: image has no entry function (LIBRARY image)")
	}

	lazyEngine := lazy.NewEngine(*maxConcurrentForce)
	memoCache := memo.NewCache()
	env := interp.NewEnvironment(prog, heap, lazyEngine, memoCache, natives)

	v, code := interp.StartAndWait(context.Background(), env, int(prog.Entry), nil)

	if *memProfile != "" {
		f, err := os.Create(*memProfile)
		if err != nil {
			log.Fatalf("memprofile: %v", err)
		}
		if err := diag.WriteHeapProfile(f, heap, memoCache); err != nil {
			log.Fatalf("memprofile: %v", err)
		}
		f.Close()
	}

	if code != vm.Success {
		log.Printf("run failed: %s", code)
		os.Exit(1)
	}
	fmt.Println(v)
}
