package cmd

import (
	"github.com/spf13/cobra"

	"github.com/gopro-tools/gopro-webcam/internal/util"
	"github.com/gopro-tools/gopro-webcam/internal/webcam"
)

func NewPresetsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "presets",
		Short: "List configuration presets and their tradeoffs",
		RunE: func(cmd *cobra.Command, args []string) error {
			columns := []util.TableColumn{
				{Header: "NAME", Key: "name"},
				{Header: "RESOLUTION", Key: "resolution"},
				{Header: "LENS", Key: "fov"},
				{Header: "SUMMARY", Key: "summary"},
			}

			var data []map[string]interface{}
			for _, p := range webcam.Presets() {
				data = append(data, map[string]interface{}{
					"name":       p.Name,
					"resolution": string(p.Config.Resolution),
					"fov":        string(p.Config.FieldOfView),
					"summary":    p.Summary,
				})
			}
			util.RenderTable(columns, data)
			return nil
		},
	}
}
