// This file is part of pcrcompute
// Copyright 2025 Canonical Ltd.
// SPDX-License-Identifier: GPL-3.0-only

// pcrcomputectl pre-computes the PCR values a UEFI Secure Boot of a
// shim-based Linux system will produce, from the boot artifacts of a
// bootable container image.
package main

import (
	"encoding/json"
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/canonical/pcrcompute/pcr"
)

const (
	defaultKernelsDir = "/usr/lib/modules/"
	defaultESPDir     = "/usr/lib/bootupd/updates/"
)

// bootFlags are the inputs shared by the subcommands that walk the
// boot chain.
type bootFlags struct {
	rootfs             string
	kernels            string
	esp                string
	efivars            string
	mokVariables       string
	ukiImage           string
	uki                bool
	securebootDisabled bool
}

func (f *bootFlags) addCommon(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.rootfs, "rootfs", "", "path to a root filesystem tree; derives the kernels and ESP paths")
	cmd.Flags().StringVarP(&f.kernels, "kernels", "k", defaultKernelsDir, "path to the kernel modules directory, used to find the vmlinuz image")
	cmd.Flags().StringVarP(&f.esp, "esp", "e", defaultESPDir, "path to the ESP directory")
	cmd.Flags().BoolVar(&f.uki, "uki", false, "the linux image is a UKI rather than vmlinuz")
	cmd.Flags().BoolVar(&f.securebootDisabled, "secureboot-disabled", false, "compute PCRs as if Secure Boot was disabled")
}

// resolve applies --rootfs over the individual path flags.
func (f *bootFlags) resolve() error {
	if f.rootfs == "" {
		return nil
	}
	tree, err := pcr.OpenRootFS(f.rootfs)
	if err != nil {
		return err
	}
	f.kernels = tree.Kernels()
	f.esp = tree.ESP()
	return nil
}

func emit(v interface{}) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("cannot encode result: %w", err)
	}
	fmt.Println(string(out))
	return nil
}

func newAllCmd() *cobra.Command {
	flags := new(bootFlags)
	cmd := &cobra.Command{
		Use:   "all",
		Short: "Compute all PCR values the supplied inputs allow",
		Long: "Compute all possible PCR values from the binaries available in the " +
			"current environment. Meant to be run inside a bootable container. " +
			"PCR 7, 11 and 14 are only computed when their inputs (--efivars, " +
			"--uki-image, --mok-variables) are supplied.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := flags.resolve(); err != nil {
				return err
			}

			var output pcr.Output

			pcr4, err := pcr.ComputePCR4(flags.kernels, flags.esp, flags.uki, !flags.securebootDisabled)
			if err != nil {
				return err
			}
			output.Pcrs = append(output.Pcrs, pcr4)

			if flags.efivars != "" {
				pcr7, err := pcr.ComputePCR7(flags.efivars, flags.esp, !flags.securebootDisabled)
				if err != nil {
					return err
				}
				output.Pcrs = append(output.Pcrs, pcr7)
			}

			if flags.ukiImage != "" {
				pcr11, err := pcr.ComputePCR11(flags.ukiImage)
				if err != nil {
					return err
				}
				output.Pcrs = append(output.Pcrs, pcr11)
			}

			if flags.mokVariables != "" {
				pcr14, err := pcr.ComputePCR14(flags.mokVariables)
				if err != nil {
					return err
				}
				output.Pcrs = append(output.Pcrs, pcr14)
			}

			return emit(output)
		},
	}
	flags.addCommon(cmd)
	cmd.Flags().StringVar(&flags.efivars, "efivars", "", "path to a directory holding the PK, KEK, db and dbx variable files")
	cmd.Flags().StringVar(&flags.mokVariables, "mok-variables", "", "path to a directory holding the MokListRT, MokListXRT and MokListTrustedRT files")
	cmd.Flags().StringVar(&flags.ukiImage, "uki-image", "", "path to a UKI to measure into PCR 11")
	return cmd
}

func newPcr4Cmd() *cobra.Command {
	flags := new(bootFlags)
	cmd := &cobra.Command{
		Use:   "pcr4",
		Short: "Compute PCR 4",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := flags.resolve(); err != nil {
				return err
			}
			result, err := pcr.ComputePCR4(flags.kernels, flags.esp, flags.uki, !flags.securebootDisabled)
			if err != nil {
				return err
			}
			return emit(result)
		},
	}
	flags.addCommon(cmd)
	return cmd
}

func newPcr7Cmd() *cobra.Command {
	flags := new(bootFlags)
	cmd := &cobra.Command{
		Use:   "pcr7",
		Short: "Compute PCR 7",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := flags.resolve(); err != nil {
				return err
			}
			if flags.efivars == "" {
				return fmt.Errorf("no efivars directory path provided")
			}
			result, err := pcr.ComputePCR7(flags.efivars, flags.esp, !flags.securebootDisabled)
			if err != nil {
				return err
			}
			return emit(result)
		},
	}
	flags.addCommon(cmd)
	cmd.Flags().StringVar(&flags.efivars, "efivars", "", "path to a directory holding the PK, KEK, db and dbx variable files")
	return cmd
}

func newPcr11Cmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pcr11 <UKI>",
		Short: "Compute PCR 11",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := pcr.ComputePCR11(args[0])
			if err != nil {
				return err
			}
			return emit(result)
		},
	}
	return cmd
}

func newPcr14Cmd() *cobra.Command {
	var mokVariables string
	cmd := &cobra.Command{
		Use:   "pcr14",
		Short: "Compute PCR 14",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if mokVariables == "" {
				return fmt.Errorf("no MOK variables directory path provided")
			}
			result, err := pcr.ComputePCR14(mokVariables)
			if err != nil {
				return err
			}
			return emit(result)
		},
	}
	cmd.Flags().StringVar(&mokVariables, "mok-variables", "", "path to a directory holding the MokListRT, MokListXRT and MokListTrustedRT files")
	return cmd
}

func newRootCmd() *cobra.Command {
	var verbose int
	cmd := &cobra.Command{
		Use:           "pcrcomputectl",
		Short:         "Pre-compute PCR values for bootable container systems",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			switch verbose {
			case 0:
				log.SetLevel(log.WarnLevel)
			case 1:
				log.SetLevel(log.InfoLevel)
			case 2:
				log.SetLevel(log.DebugLevel)
			default:
				log.SetLevel(log.TraceLevel)
			}
		},
	}
	cmd.PersistentFlags().CountVarP(&verbose, "verbose", "v", "log verbosity: -v for info, -vv for debug, -vvv for trace")

	cmd.AddCommand(newAllCmd(), newPcr4Cmd(), newPcr7Cmd(), newPcr11Cmd(), newPcr14Cmd())
	return cmd
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		log.Error(err)
		os.Exit(1)
	}
}
