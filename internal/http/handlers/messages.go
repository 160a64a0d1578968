package handlers

import "fmt"

// Localized user-facing admission messages. The locale is resolved by the
// i18n middleware; anything unknown falls back to English.

func rateLimitMessage(locale string, limit int) string {
	if locale == "id" {
		return fmt.Sprintf("batas penggunaan tercapai: maksimal %d pekerjaan per jam pada paket Anda", limit)
	}
	return fmt.Sprintf("rate limit exceeded: at most %d jobs per hour on your plan", limit)
}

func concurrencyMessage(locale string, limit int) string {
	if locale == "id" {
		return fmt.Sprintf("terlalu banyak pekerjaan aktif: maksimal %d pekerjaan berjalan pada paket Anda", limit)
	}
	return fmt.Sprintf("too many active jobs: at most %d running jobs on your plan", limit)
}

func insufficientCreditsMessage(locale string, balance, cost int64) string {
	if locale == "id" {
		return fmt.Sprintf("kredit tidak mencukupi: butuh %d, saldo Anda %d", cost, balance)
	}
	return fmt.Sprintf("insufficient credits: this request costs %d, your balance is %d", cost, balance)
}
