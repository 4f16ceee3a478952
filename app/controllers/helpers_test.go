package controllers

import "github.com/shopspring/decimal"

func dec(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}
