package module

import (
	"strconv"

	"taghist/internal/platform/config"
	perr "taghist/internal/platform/errors"
	"taghist/internal/services/history/domain"
)

// FromConfig assembles run options from TAGHIST_* env, typically
// populated by the CLI's flag bridge
func FromConfig(cfg config.Conf) (domain.Options, error) {
	hf := cfg.Prefix("TAGHIST_")

	o := domain.Defaults()
	o.Columns = hf.MayCSV("COLUMNS", nil)
	o.Epoch = hf.MayBool("EPOCH", false)
	o.SeparateLines = hf.MayBool("SEPARATE_LINES", false)
	o.Header = hf.MayBool("HEADER", true)
	o.Kinds = hf.MayCSV("KINDS", nil)
	o.TagKeys = hf.MayCSV("TAG_KEYS", nil)
	o.TagValues = hf.MayCSV("TAG_FILTERS", nil)
	o.Output = hf.MayString("OUTPUT", "-")
	o.Compression = hf.MayEnum("COMPRESSION", "auto", "none", "auto", "gzip")
	o.ProgressEvery = hf.MayDuration("PROGRESS_EVERY", 0)

	uids, err := parseUIDs(hf.MayCSV("UIDS", nil))
	if err != nil {
		return domain.Options{}, err
	}
	o.UIDs = uids

	if o.ProgressEvery < 0 {
		o.ProgressEvery = 0
	}
	return o, nil
}

func parseUIDs(raw []string) ([]uint64, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	out := make([]uint64, 0, len(raw))
	for _, s := range raw {
		u, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			return nil, perr.Configf("uid %q is not an unsigned integer", s)
		}
		out = append(out, u)
	}
	return out, nil
}
