// fatinfo prints the boot parameters, geometry, free space hints and selected FAT entries of a FAT32 image.
package main

import (
	"flag"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/aligator/fatfs"
	"github.com/golang/glog"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

type options struct {
	skipChecks bool
	entries    []uint
	mirror     uint8
}

func newRootCommand(fsys afero.Fs) *cobra.Command {
	opts := options{}

	cmd := &cobra.Command{
		Use:   "fatinfo <image>",
		Short: "Print the boot parameters and FAT entries of a FAT32 image",
		Args:  cobra.ExactArgs(1),
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// glog expects the go flags to be parsed, they already are through pflag.
			return flag.CommandLine.Parse(nil)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.OutOrStdout(), fsys, args[0], opts)
		},
		SilenceUsage: true,
	}

	cmd.Flags().BoolVar(&opts.skipChecks, "skip-checks", false, "skip the advisory boot sector checks")
	cmd.Flags().UintSliceVar(&opts.entries, "entry", nil, "FAT entry to print, may be repeated")
	cmd.Flags().Uint8Var(&opts.mirror, "mirror", 0, "number of the FAT copy to read the entries from")
	cmd.PersistentFlags().AddGoFlagSet(flag.CommandLine)

	return cmd
}

func run(out io.Writer, fsys afero.Fs, image string, opts options) error {
	fat, err := fatfs.MountFile(fsys, image, opts.skipChecks)
	if err != nil {
		return err
	}
	defer fat.Unmount()

	bpb := fat.BootParameterBlock()
	geometry := fat.Geometry()

	fmt.Fprintf(out, "Opened volume '%v' with type %v\n\n", fat.Label(), fat.FSType())
	fmt.Fprintf(out, "OEM name:            %v\n", bpb.OEMName)
	fmt.Fprintf(out, "Volume ID:           %08X\n", bpb.VolumeID)
	fmt.Fprintf(out, "Sector size:         %v\n", geometry.SectorSize)
	fmt.Fprintf(out, "Sectors per cluster: %v\n", geometry.SectorsPerCluster)
	fmt.Fprintf(out, "Cluster size:        %v\n", geometry.ClusterSize)
	fmt.Fprintf(out, "Sectors:             %v\n", geometry.SectorCount)
	fmt.Fprintf(out, "Partition LBA:       %v\n", geometry.PartitionLBA)
	fmt.Fprintf(out, "FAT:                 %v copies of %v sectors at %v\n", fat.FAT().Copies(), fat.FAT().Size(), fat.FAT().StartLBA())
	fmt.Fprintf(out, "Data LBA:            %v\n", geometry.DataStartLBA)
	fmt.Fprintf(out, "Root cluster:        %v\n", fat.RootCluster())
	fmt.Fprintf(out, "Free clusters:       %v\n", fat.FreeClusterCount())
	fmt.Fprintf(out, "Next free cluster:   %v\n", fat.NextFreeCluster())

	for _, index := range opts.entries {
		if index > math.MaxUint32 {
			return fmt.Errorf("FAT entry %v is out of range", index)
		}

		entry, err := fat.FAT().ReadMirrorEntry(opts.mirror, uint32(index))
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "FAT[%v][%v] = %#08x (%v)\n", opts.mirror, index, uint32(entry), entry)
	}

	return nil
}

func main() {
	defer glog.Flush()

	if err := newRootCommand(afero.NewOsFs()).Execute(); err != nil {
		os.Exit(1)
	}
}
