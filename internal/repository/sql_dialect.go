package repository

import (
	"fmt"
	"strings"

	"gorm.io/gorm"
)

// dbDialectName 获取数据库方言名称，默认按 sqlite 处理。
func dbDialectName(db *gorm.DB) string {
	if db == nil || db.Dialector == nil {
		return "sqlite"
	}
	name := strings.ToLower(strings.TrimSpace(db.Dialector.Name()))
	if name == "" {
		return "sqlite"
	}
	return name
}

func likeOperatorByDialect(dialect string) string {
	switch strings.ToLower(strings.TrimSpace(dialect)) {
	case "postgres", "postgresql":
		return "ILIKE"
	default:
		return "LIKE"
	}
}

// buildLikeCondition 构建多列 OR LIKE 条件，并返回参数数量。
func buildLikeCondition(db *gorm.DB, columns []string) (string, int) {
	return buildLikeConditionByDialect(dbDialectName(db), columns)
}

func buildLikeConditionByDialect(dialect string, columns []string) (string, int) {
	parts := make([]string, 0, len(columns))
	operator := likeOperatorByDialect(dialect)
	for _, column := range columns {
		trimmed := strings.TrimSpace(column)
		if trimmed == "" {
			continue
		}
		parts = append(parts, fmt.Sprintf("%s %s ?", trimmed, operator))
	}
	return strings.Join(parts, " OR "), len(parts)
}

// repeatLikeArgs 生成重复的 LIKE 参数列表。
func repeatLikeArgs(like string, count int) []interface{} {
	args := make([]interface{}, 0, count)
	for i := 0; i < count; i++ {
		args = append(args, like)
	}
	return args
}

// idArrayContains 为 JSON 数组文本列（例如 [1,2,3]）构建包含条件，按边界匹配避免 1 命中 11。
func idArrayContains(query *gorm.DB, column string, id uint) *gorm.DB {
	exact := fmt.Sprintf("[%d]", id)
	prefix := fmt.Sprintf("[%d,%%", id)
	middle := fmt.Sprintf("%%,%d,%%", id)
	suffix := fmt.Sprintf("%%,%d]", id)
	condition := fmt.Sprintf("(%[1]s = ? OR %[1]s LIKE ? OR %[1]s LIKE ? OR %[1]s LIKE ?)", column)
	return query.Where(condition, exact, prefix, middle, suffix)
}

// ChunkIDs 按批大小切分 ID 列表，batchSize <= 0 时不切分。
func ChunkIDs(ids []uint, batchSize int) [][]uint {
	if len(ids) == 0 {
		return nil
	}
	if batchSize <= 0 || len(ids) <= batchSize {
		return [][]uint{ids}
	}
	chunks := make([][]uint, 0, (len(ids)+batchSize-1)/batchSize)
	for start := 0; start < len(ids); start += batchSize {
		end := start + batchSize
		if end > len(ids) {
			end = len(ids)
		}
		chunks = append(chunks, ids[start:end])
	}
	return chunks
}
