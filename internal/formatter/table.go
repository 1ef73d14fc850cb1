package formatter

import (
	"fmt"
	"sort"

	"github.com/desertthunder/tuneflow/internal/models"
	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// RenderFormats renders the extractor's formats as a table, audio-only first and by descending bitrate.
func RenderFormats(formats []models.AudioFormat) string {
	sorted := append([]models.AudioFormat(nil), formats...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].AudioOnly() != sorted[j].AudioOnly() {
			return sorted[i].AudioOnly()
		}
		return sorted[i].Bitrate() > sorted[j].Bitrate()
	})

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(table.Row{"ID", "Ext", "Audio", "Video", "Kbps", "Size"})

	for _, f := range sorted {
		size := ""
		if f.Filesize > 0 {
			size = humanize.Bytes(uint64(f.Filesize))
		}
		kbps := ""
		if f.Bitrate() > 0 {
			kbps = fmt.Sprintf("%.0f", f.Bitrate())
		}
		tw.AppendRow(table.Row{f.ID, f.Ext, f.ACodec, f.VCodec, kbps, size})
	}

	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 5, Align: text.AlignRight, AlignHeader: text.AlignLeft},
		{Number: 6, Align: text.AlignRight, AlignHeader: text.AlignLeft},
	})
	return tw.Render()
}
