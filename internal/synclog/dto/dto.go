package dto

type LogFilters struct {
	SyncJobID      int64
	ShopifyStoreID int64
	Level          string
	Status         string
	EntityType     string
	ErpIdentifier  string
	Page           int
	PageSize       int
}

// LevelCounts summarizes a job's log rows by level.
type LevelCounts struct {
	Info    int `db:"info" json:"info"`
	Warning int `db:"warning" json:"warning"`
	Error   int `db:"error" json:"error"`
}

func (c LevelCounts) Total() int {
	return c.Info + c.Warning + c.Error
}
