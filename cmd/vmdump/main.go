// Command vmdump prints a structural dump of a decoded Letin VM program
// image — a load.Image's sections in order, in the spirit of the
// toolchain's own objdump rather than a disassembler (decoding opcodes back
// to mnemonics is cmd/vmdump's one deliberately unimplemented stretch goal;
// see DESIGN.md).
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"letin/vm/format"
	"letin/vm/interp"
	"letin/vm/load"
)

func main() {
	log.SetFlags(0)
	log.SetPrefix("vmdump: ")

	showCode := flag.Bool("code", false, "also dump the raw opcode/mode/operand fields of every instruction")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: vmdump [flags] image.lb\n")
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

	fmt.Printf("header: %s\n", img.Header)

	fmt.Println("functions:")
	for i, fn := range img.Functions {
		fi := format.FunctionInfo{}
		if i < len(img.FunctionInfo) {
			fi = img.FunctionInfo[i]
		}
		fmt.Printf("  [%d] addr=%d argc=%d instrs=%d lazy=%v memo=%v\n",
			i, fn.Addr, fn.ArgCount, fn.InstrCount, fi.IsLazy(), fi.IsMemoizable())
	}

	fmt.Printf("globals: %d\n", len(img.Vars))

	fmt.Printf("code: %d instructions\n", len(img.Code))
	if *showCode {
		for i, in := range img.Code {
			op, m1, m2 := interp.DecodeOpcode(in.Opcode)
			fmt.Printf("  %6d: op=%d m1=%d m2=%d arg1=%d arg2=%d\n", i, op, m1, m2, in.Arg1.I, in.Arg2.I)
		}
	}

	fmt.Printf("data: %d bytes\n", len(img.Data))

	fmt.Println("relocations:")
	for _, r := range img.Relocations {
		fmt.Printf("  type=%d addr=%d symbol=%d\n", r.Type, r.Addr, r.Symbol)
	}

	fmt.Println("symbols:")
	for _, s := range img.Symbols {
		fmt.Printf("  %s index=%d kind=%d defined=%v\n", s.Name, s.Index, s.Kind(), s.IsDefined())
	}
}
