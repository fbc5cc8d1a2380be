package chamfer

import "fmt"

func resultShape(b, n, m int) string {
	return fmt.Sprintf("{distA/idxA:[%d, %d], distB/idxB:[%d, %d]}", b, n, b, m)
}

func flatShape(n int) string { return fmt.Sprintf("[%d]", n) }

func indexRange(limit int) string { return fmt.Sprintf("[0, %d)", limit) }

func indexValue(v int32) string { return fmt.Sprintf("index %d", v) }
