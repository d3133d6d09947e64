package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/z0x50/z0x50/internal/cfgreader"
	"github.com/z0x50/z0x50/internal/zlog"
	"github.com/z0x50/z0x50/orchestrator"
)

func main() {
	var decompilePath string
	var testMode bool
	var cfgPath string
	var verbose bool

	root := &cobra.Command{
		Use:   "z0x50",
		Short: "A cycle-accurate Zilog Z80 core",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(decompilePath, testMode, cfgPath, verbose)
		},
	}
	root.Flags().StringVarP(&decompilePath, "decompile", "d", "", "decompile mode: disassemble <path> as a flat byte image")
	root.Flags().BoolVarP(&testMode, "test", "T", false, "test mode: exercise CLCK only")
	root.Flags().StringVarP(&cfgPath, "config", "c", "configuration.cfg", "configuration file path")
	root.Flags().BoolVar(&verbose, "verbose", false, "also write Debug.log")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(-1)
	}
}

func run(decompilePath string, testMode bool, cfgPath string, verbose bool) error {
	log, closeLogs, err := zlog.New("", verbose)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(-1)
	}
	defer closeLogs()

	o := orchestrator.New(log)

	switch {
	case decompilePath != "":
		if err := o.RunDecompile(decompilePath, os.Stdout); err != nil {
			log.Errorf("z0x50: %v", err)
			os.Exit(-1)
		}
	case testMode:
		if err := o.RunTest(); err != nil {
			log.Errorf("z0x50: %v", err)
			os.Exit(-1)
		}
	default:
		f, err := os.Open(cfgPath)
		if err != nil {
			log.Errorf("z0x50: unreadable config %s: %v", cfgPath, err)
			os.Exit(-1)
		}
		cfg, err := cfgreader.Read(f)
		f.Close()
		if err != nil {
			log.Errorf("z0x50: config parse failed: %v", err)
			os.Exit(-1)
		}
		if err := o.RunNormal(cfg); err != nil {
			log.Errorf("z0x50: %v", err)
			os.Exit(-1)
		}
	}

	log.Infof("z0x50: finished in %s mode", strings.ToLower(o.Mode.String()))
	return nil
}
