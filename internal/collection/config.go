package collection

// resolveConfig merges the configuration ancestral to dir (spec §4.10
// "service/config layers ancestral to the endpoint's path are merged"),
// folding in matching "…/defaults" data records (spec's defaults
// propagation) and concatenating mixin lists without duplicates, a
// child (deeper directory) always overriding or extending what an
// ancestor declared.
func resolveConfig(col *Collection, dir string) map[string]any {
	result := map[string]any{}
	var mixins []string
	seenMixin := map[string]bool{}

	for _, ancestor := range ancestorDirs(dir) {
		if cfg, ok := col.Configurations[ancestor]; ok {
			result = deepMerge(result, cfg)
			for _, name := range mixinNames(cfg) {
				if !seenMixin[name] {
					seenMixin[name] = true
					mixins = append(mixins, name)
				}
			}
		}

		defaultsID := "defaults"
		if ancestor != "" {
			defaultsID = ancestor + "/defaults"
		}
		if def, ok := col.Data[defaultsID]; ok {
			existing, _ := result["defaults"].(map[string]any)
			result["defaults"] = deepMerge(existing, def)
		}
	}

	if len(mixins) > 0 {
		result["mixin"] = mixins
	}
	return result
}

func mixinNames(cfg map[string]any) []string {
	list, _ := cfg["mixin"].([]any)
	out := make([]string, 0, len(list))
	for _, v := range list {
		if name, ok := v.(string); ok && name != "" {
			out = append(out, name)
		}
	}
	return out
}
