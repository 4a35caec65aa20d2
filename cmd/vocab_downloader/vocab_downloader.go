package main

import (
	"flag"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/wbrown/byte_bpe"
	"github.com/wbrown/byte_bpe/resources"
	"k8s.io/klog/v2"
)

// Fetches a tokenizer dump, checks that it loads, and stores it locally.

func main() {
	klog.InitFlags(nil)
	vocabId := flag.String("vocab", "",
		"tokenizer dump URL or path to fetch")
	destPath := flag.String("dest", "./",
		"where to download the tokenizer to")
	name := flag.String("name", "tokenizer.json",
		"file name of the stored tokenizer")
	flag.Parse()
	if *vocabId == "" {
		flag.Usage()
		klog.Fatal("Must provide -vocab")
	}

	data, err := resources.ReadResource(*vocabId)
	if err != nil {
		klog.Fatalf("Error downloading tokenizer: %s", err)
	}
	tokenizer, err := byte_bpe.LoadDump(data)
	if err != nil {
		klog.Fatalf("Error loading %s: %s", *vocabId, err)
	}

	if err := os.MkdirAll(*destPath, 0755); err != nil {
		klog.Fatal(err)
	}
	outPath := filepath.Join(*destPath, *name)
	if err := resources.WriteLocked(outPath, data); err != nil {
		klog.Fatal(err)
	}
	klog.Infof("Wrote %s (%s) to %s: %s tokens", *vocabId,
		humanize.Bytes(uint64(len(data))), outPath,
		humanize.Comma(int64(tokenizer.NTokens())))
}
