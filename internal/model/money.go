package model

// Money 金额，使用最小货币单位的整数表示，不允许浮点运算
type Money int64

// PercentOf 按百分比计算金额，向下取整
func PercentOf(total Money, percentage int64) Money {
	return Money(int64(total) * percentage / 100)
}
