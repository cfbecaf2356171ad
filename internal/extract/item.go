package extract

import (
	"time"

	"github.com/MrSnakeDoc/datascope/internal/domain"
)

// Item is one extracted unit before it becomes a Record.
type Item struct {
	ID     string
	Fields map[string]string
}

// Records stamps items with their source, domain and collection time.
func Records(source, domainName string, at time.Time, items []Item) []domain.Record {
	records := make([]domain.Record, 0, len(items))
	for _, it := range items {
		records = append(records, it.Record(source, domainName, at))
	}
	return records
}

func (it Item) Record(source, domainName string, at time.Time) domain.Record {
	return domain.Record{
		SourceName:  source,
		CollectedAt: at,
		Domain:      domainName,
		Fields:      it.Fields,
	}
}
