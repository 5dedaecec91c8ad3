package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/google/gopacket/pcap"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"firestige.xyz/pktlive/internal/capture/source"
)

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List capturable network interfaces",
	Long: `List the interfaces libpcap can capture on, with their addresses.
The interface the daemon picks when capture.interface is empty is marked with *.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		devs, err := pcap.FindAllDevs()
		if err != nil {
			return fmt.Errorf("failed to list devices: %w", err)
		}
		def, _ := source.DefaultInterface()
		return runDevices(cmd.OutOrStdout(), devs, def)
	},
}

func runDevices(w io.Writer, devs []pcap.Interface, defaultIface string) error {
	if len(devs) == 0 {
		fmt.Fprintln(w, "No devices found (capturing may require elevated privileges)")
		return nil
	}

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"", "name", "description", "addresses"})
	for _, dev := range devs {
		mark := ""
		if dev.Name == defaultIface {
			mark = "*"
		}
		addrs := make([]string, 0, len(dev.Addresses))
		for _, a := range dev.Addresses {
			addrs = append(addrs, a.IP.String())
		}
		table.Append([]string{mark, dev.Name, dev.Description, strings.Join(addrs, ", ")})
	}
	table.Render()
	return nil
}
