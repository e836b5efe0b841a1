// Command digcap is a playground CLI over the capsule pipeline.
//
// Usage:
//
//	digcap create <input> <output-dir> [--post-pad] [--key=passphrase]
//	digcap extract <set-dir> <output-file> [--key=passphrase]
//	digcap info <capsule-file>
//	digcap describe <set-dir>
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	flag "github.com/spf13/pflag"

	capsule "github.com/dig-network/digcap"
)

func main() {
	if err := run(os.Stdout, os.Stderr, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(out, errOut io.Writer, args []string) error {
	if len(args) == 0 {
		fmt.Fprint(out, usage())
		return nil
	}

	ctx := context.Background()

	switch args[0] {
	case "create":
		return cmdCreate(ctx, out, errOut, args[1:])
	case "extract":
		return cmdExtract(ctx, out, errOut, args[1:])
	case "info":
		return cmdInfo(out, errOut, args[1:])
	case "describe":
		return cmdDescribe(out, errOut, args[1:])
	case "help", "-h", "--help":
		fmt.Fprint(out, usage())
		return nil
	default:
		return fmt.Errorf("unknown command: %s\n%s", args[0], usage())
	}
}

func usage() string {
	return `digcap: deterministic capsule pipeline

Commands:
  create <input> <output-dir> [options]   Chunk, transform, and write a capsule set
  extract <set-dir> <output-file> [opts]  Reconstruct original content from a capsule set
  info <capsule-file>                     Print one capsule file's header
  describe <set-dir>                      Cross-check a set's sidecar against disk

Options for create:
  --post-pad           Use encrypt-then-compress-then-pad ordering (default: pad-then-encrypt-then-compress)
  --key=PASSPHRASE      Encrypt with this passphrase (raw 32 bytes used directly, else PBKDF2-stretched)
  --overwrite           Allow overwriting an existing set in output-dir

Options for extract:
  --key=PASSPHRASE      Decrypt with this passphrase

Examples:
  digcap create ./video.mp4 ./out --key=hunter2
  digcap extract ./out ./video.mp4 --key=hunter2
  digcap info ./out/3f9a1c2b8e7d4f01_000.capsule
  digcap describe ./out
`
}

func cmdCreate(ctx context.Context, out, errOut io.Writer, args []string) error {
	flagSet := flag.NewFlagSet("create", flag.ContinueOnError)
	flagSet.SetOutput(errOut)

	postPad := flagSet.Bool("post-pad", false, "encrypt-then-compress-then-pad ordering")
	key := flagSet.String("key", "", "encryption passphrase")
	overwrite := flagSet.Bool("overwrite", false, "allow overwriting an existing set")

	if err := flagSet.Parse(args); err != nil {
		return err
	}

	if flagSet.NArg() < 2 {
		return errors.New("usage: digcap create <input> <output-dir> [options]")
	}

	inputPath := flagSet.Arg(0)
	outputDir := flagSet.Arg(1)

	var keyBytes []byte
	if *key != "" {
		keyBytes = []byte(*key)
	}

	set, err := capsule.CreateFromFile(ctx, inputPath, outputDir, *postPad, keyBytes, capsule.Options{Overwrite: *overwrite})
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Set ID:     %s\n", set.ID)
	fmt.Fprintf(out, "Capsules:   %d\n", set.Metadata.CapsuleCount)
	fmt.Fprintf(out, "Bucket:     %d bytes\n", set.Metadata.CapsuleSizes[0])
	fmt.Fprintf(out, "Original:   %d bytes\n", set.Metadata.OriginalSize)
	fmt.Fprintf(out, "Encrypted:  %v\n", set.Metadata.EncryptionInfo != nil)

	return nil
}

func cmdExtract(ctx context.Context, out, errOut io.Writer, args []string) error {
	flagSet := flag.NewFlagSet("extract", flag.ContinueOnError)
	flagSet.SetOutput(errOut)

	key := flagSet.String("key", "", "decryption passphrase")

	if err := flagSet.Parse(args); err != nil {
		return err
	}

	if flagSet.NArg() < 2 {
		return errors.New("usage: digcap extract <set-dir> <output-file> [options]")
	}

	inputDir := flagSet.Arg(0)
	outputPath := flagSet.Arg(1)

	var keyBytes []byte
	if *key != "" {
		keyBytes = []byte(*key)
	}

	if err := capsule.ExtractToFile(ctx, inputDir, outputPath, keyBytes); err != nil {
		return err
	}

	fmt.Fprintf(out, "Wrote %s\n", outputPath)

	return nil
}

func cmdInfo(out, errOut io.Writer, args []string) error {
	flagSet := flag.NewFlagSet("info", flag.ContinueOnError)
	flagSet.SetOutput(errOut)

	if err := flagSet.Parse(args); err != nil {
		return err
	}

	if flagSet.NArg() < 1 {
		return errors.New("usage: digcap info <capsule-file>")
	}

	info, err := capsule.CapsuleFileInfo(flagSet.Arg(0))
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Version:        %d\n", info.Version)
	fmt.Fprintf(out, "Index:          %d\n", info.Index)
	fmt.Fprintf(out, "Bucket size:    %d bytes\n", info.BucketSize)
	fmt.Fprintf(out, "Content length: %d bytes\n", info.ContentLength)
	fmt.Fprintf(out, "Encrypted:      %v\n", info.Encrypted)
	fmt.Fprintf(out, "Compressed:     %v\n", info.Compressed)
	fmt.Fprintf(out, "Post-pad:       %v\n", info.PostPad)

	return nil
}

func cmdDescribe(out, errOut io.Writer, args []string) error {
	flagSet := flag.NewFlagSet("describe", flag.ContinueOnError)
	flagSet.SetOutput(errOut)

	if err := flagSet.Parse(args); err != nil {
		return err
	}

	if flagSet.NArg() < 1 {
		return errors.New("usage: digcap describe <set-dir>")
	}

	report, err := capsule.DescribeSet(flagSet.Arg(0))
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Set ID:          %s\n", report.ID)
	fmt.Fprintf(out, "Capsules found:  %d / %d\n", report.CapsuleFilesFound, report.Metadata.CapsuleCount)
	fmt.Fprintf(out, "Count matches:   %v\n", report.CountMatches)
	fmt.Fprintf(out, "Sizes match:     %v\n", report.SizesMatch)

	if len(report.Problems) > 0 {
		fmt.Fprintln(out, "Problems:")

		for _, p := range report.Problems {
			fmt.Fprintf(out, "  - %s\n", p)
		}
	}

	return nil
}
