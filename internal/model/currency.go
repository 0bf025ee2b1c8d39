package model

// Currency affects display formatting only. The selection is a per-terminal
// preference and is not part of the synchronized data model.
type Currency struct {
	Code   string `json:"code"`
	Symbol string `json:"symbol"`
}

var Currencies = []Currency{
	{Code: "USD", Symbol: "$"},
	{Code: "EUR", Symbol: "€"},
	{Code: "GBP", Symbol: "£"},
	{Code: "JPY", Symbol: "¥"},
	{Code: "INR", Symbol: "₹"},
}
