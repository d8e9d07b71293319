package cmd

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/nvr-ai/go-restore/restoration"
	"github.com/nvr-ai/go-restore/restoration/store"
)

// presetSettings returns the built-in settings of a preset name.
func presetSettings(name string) (restoration.Settings, error) {
	switch strings.ToLower(name) {
	case "restoration", "restore":
		return restoration.RestorationDefaults(), nil
	case "inpainting", "inpaint":
		return restoration.InpaintingDefaults(), nil
	case "resize":
		return restoration.ResizeDefaults(), nil
	default:
		return restoration.Settings{}, errors.Errorf("unknown preset %q", name)
	}
}

// presetFor picks the preset matching a mode unless one is named explicitly.
func presetFor(mode restoration.Mode, explicit, fallback string) string {
	if explicit != "" {
		return strings.ToLower(explicit)
	}
	switch mode.(type) {
	case restoration.InPainting:
		return "inpainting"
	case restoration.Resize, restoration.SimpleResize:
		return "resize"
	default:
		return strings.ToLower(fallback)
	}
}

// resolveSettings layers the preset defaults, the remembered group of the store
// and an optional settings text file.
func (a *app) resolveSettings(preset, textPath string) (restoration.Settings, error) {
	s, err := presetSettings(preset)
	if err != nil {
		return s, err
	}

	groups, err := store.LoadGroups(a.cfg.SettingsPath)
	if err != nil {
		return s, err
	}
	s = store.ReadSettings(groups[preset], s)

	if textPath != "" {
		f, err := os.Open(textPath)
		if err != nil {
			return s, errors.Wrap(err, "failed to open settings file")
		}
		defer f.Close()
		if s, err = store.ReadText(f); err != nil {
			return s, errors.Wrapf(err, "settings file %s", textPath)
		}
	}
	return s, nil
}

// remember stores s as the preset group of the settings store.
func (a *app) remember(preset string, s restoration.Settings) error {
	groups, err := store.LoadGroups(a.cfg.SettingsPath)
	if err != nil {
		return err
	}
	g := groups[preset]
	if g == nil {
		g = store.Group{}
	}
	store.WriteSettings(g, s)
	groups[preset] = g
	return store.SaveGroups(a.cfg.SettingsPath, groups)
}

// NewSettingsCmd prints, imports and resets remembered settings.
func NewSettingsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "show or change the remembered settings of a preset",
		Long: "Prints the effective settings of a preset as a settings text file, YAML or " +
			"filter parameters. --import stores a settings text file as the preset's " +
			"remembered values and --reset drops them.",
		RunE: func(cmd *cobra.Command, args []string) error {
			preset, _ := cmd.Flags().GetString("preset")
			if preset == "" {
				preset = a.cfg.DefaultPreset
			}
			preset = strings.ToLower(preset)
			format, _ := cmd.Flags().GetString("format")
			importPath, _ := cmd.Flags().GetString("import")
			reset, _ := cmd.Flags().GetBool("reset")

			if reset {
				groups, err := store.LoadGroups(a.cfg.SettingsPath)
				if err != nil {
					return err
				}
				delete(groups, preset)
				if err := store.SaveGroups(a.cfg.SettingsPath, groups); err != nil {
					return err
				}
			}

			s, err := a.resolveSettings(preset, importPath)
			if err != nil {
				return err
			}
			if importPath != "" {
				if err := a.remember(preset, s); err != nil {
					return err
				}
				a.logger.Info("settings imported")
			}
			return writeSettings(cmd, s, format)
		},
	}
	pf := cmd.Flags()
	pf.String("preset", "", "preset name (restoration, inpainting, resize)")
	pf.StringP("format", "f", "text", "output format (text|yaml|params)")
	pf.String("import", "", "settings text file to remember for the preset")
	pf.Bool("reset", false, "forget the remembered settings of the preset")
	return cmd
}

func writeSettings(cmd *cobra.Command, s restoration.Settings, format string) error {
	out := cmd.OutOrStdout()
	switch format {
	case "text":
		return store.WriteText(out, s)
	case "yaml":
		data, err := yaml.Marshal(s)
		if err != nil {
			return errors.Wrap(err, "failed to encode settings")
		}
		_, err = out.Write(data)
		return err
	case "params":
		params := s.Parameters()
		keys := make([]string, 0, len(params))
		for k := range params {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(out, "%s=%s\n", k, params[k])
		}
		return nil
	default:
		return errors.Errorf("unknown format %q", format)
	}
}
