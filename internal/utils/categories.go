package utils

import (
	"encoding/csv"
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/hiagocrazzy2017/letter-spin-stop-time/internal"
)

// ReadCategoriesCsv loads the default category list from a file with rows of
// id,label[,active]. A missing active column means active.
func ReadCategoriesCsv(filePath string) ([]internal.Category, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("open categories file %s: %w", filePath, err)
	}
	defer f.Close()

	csvReader := csv.NewReader(f)
	csvReader.FieldsPerRecord = -1
	csvReader.TrimLeadingSpace = true

	records, err := csvReader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse categories file %s: %w", filePath, err)
	}

	var categories []internal.Category
	for _, record := range records {
		if len(record) < 2 {
			log.Warn().Strs("record", record).Msg("[ReadCategoriesCsv] skipping invalid record")
			continue
		}

		category := internal.Category{
			Id:     strings.TrimSpace(record[0]),
			Label:  strings.TrimSpace(record[1]),
			Active: true,
		}
		if category.Id == "" || category.Label == "" {
			log.Warn().Strs("record", record).Msg("[ReadCategoriesCsv] skipping record with empty id or label")
			continue
		}
		if len(record) > 2 && strings.TrimSpace(record[2]) != "" {
			active, err := strconv.ParseBool(strings.TrimSpace(record[2]))
			if err != nil {
				log.Warn().Str("value", record[2]).Strs("record", record).Msg("[ReadCategoriesCsv] invalid active value")
				continue
			}
			category.Active = active
		}

		categories = append(categories, category)
	}

	if len(categories) == 0 {
		return nil, fmt.Errorf("categories file %s has no usable rows", filePath)
	}
	if !slices.ContainsFunc(categories, func(c internal.Category) bool { return c.Active }) {
		return nil, fmt.Errorf("categories file %s has no active category", filePath)
	}
	return categories, nil
}
