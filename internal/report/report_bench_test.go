package report

import (
	"fmt"
	"sync/atomic"
	"testing"

	"rank-client/internal/models"
	"rank-client/internal/wire"
)

func benchRecords(n int) []models.ReportRecord {
	records := make([]models.ReportRecord, n)
	for i := range records {
		r := bcap
		r.Broker = fmt.Sprintf("B%04d", i)
		records[i] = r
	}
	return records
}

func BenchmarkDecode(b *testing.B) {
	for _, n := range []int{1, 100, 1000} {
		msg := reportMessage(b, 1, benchRecords(n)...)
		b.Run(fmt.Sprintf("records=%d", n), func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				records, err := Decode(msg)
				if err != nil || len(records) != n {
					b.Fatalf("Decode: %d records, %v", len(records), err)
				}
			}
		})
	}
}

// BenchmarkCorrelatorParallel matches unrelated and tracked tokens from
// several goroutines.
func BenchmarkCorrelatorParallel(b *testing.B) {
	c := NewCorrelator()
	q := sampleQuery(b)
	msgs := make([]wire.Message, 64)
	for i := range msgs {
		token := wire.CorrelationID(i + 1)
		msgs[i] = reportMessage(b, token, bcap)
		if token%2 == 0 {
			c.Track(token, q)
		}
	}

	var next atomic.Uint64
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			n := next.Add(1)
			msg := msgs[n%uint64(len(msgs))]
			token, _ := msg.CorrelationID()
			want := Unrelated
			if token%2 == 0 {
				want = Records
			}
			if m := c.Match(msg); m.Kind != want {
				b.Errorf("token %s matched as %s", token, m.Kind)
			}
		}
	})
}
