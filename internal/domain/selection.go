package domain

// Selection is the (asset, period) pair currently shown on the chart.
type Selection struct {
	AssetID string
	Period  Period
}

// IsZero reports whether no selection has been made yet.
func (s Selection) IsZero() bool {
	return s.AssetID == "" && s.Period == ""
}
