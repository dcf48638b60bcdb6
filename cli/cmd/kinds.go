package cmd

import (
	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/courier/cli/render"
	"github.com/pithecene-io/courier/message"
)

// KindInfo describes one message kind.
type KindInfo struct {
	Name        string `json:"name" yaml:"name"`
	Frame       string `json:"frame" yaml:"frame"`
	AllowsEmpty bool   `json:"allows_empty" yaml:"allows_empty"`
	Numeric     bool   `json:"numeric" yaml:"numeric"`
	Default     bool   `json:"default" yaml:"default"`
}

// KindsCommand returns the kinds command.
func KindsCommand() *cli.Command {
	return &cli.Command{
		Name:   "kinds",
		Usage:  "List supported message kinds",
		Flags:  OutputFlags(),
		Action: kindsAction,
	}
}

// ListKinds returns every supported kind in listing order.
func ListKinds() []KindInfo {
	kinds := message.Kinds()
	out := make([]KindInfo, 0, len(kinds))
	for _, k := range kinds {
		out = append(out, KindInfo{
			Name:        k.String(),
			Frame:       k.Frame().String(),
			AllowsEmpty: k.AllowsEmpty(),
			Numeric:     k.Numeric(),
			Default:     k == message.DefaultKind,
		})
	}
	return out
}

func kindsAction(c *cli.Context) error {
	r, err := render.NewRenderer(c)
	if err != nil {
		return cli.Exit(err.Error(), exitInvalidInput)
	}
	return r.Render(ListKinds())
}
