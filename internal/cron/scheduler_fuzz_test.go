package cron

import "testing"

func FuzzCronSchedule(f *testing.F) {
	f.Add("*/5 * * * *")
	f.Add("0 0 * * *")
	f.Add("0 0 1 1 *")
	f.Add("* * * * *")
	f.Add("invalid")
	f.Add("")
	f.Add("60 * * * *")
	f.Add("0 25 * * *")
	f.Add("@hourly")
	f.Add("@every 5m")

	f.Fuzz(func(_ *testing.T, expr string) {
		// Must not panic; errors are expected and acceptable.
		_ = ParseSchedule(expr)
	})
}
