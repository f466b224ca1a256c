package perception

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/boshu2/heartbeat/internal/vaultstore"
)

// DailyRate is one day's admission statistics for a source.
type DailyRate struct {
	Date     string  `json:"date"` // YYYY-MM-DD
	Admitted int     `json:"admitted"`
	Total    int     `json:"total"`
	Rate     float64 `json:"rate"` // 1 - admitted/total
}

// SourceNoise is the retained history for one sourceId.
type SourceNoise struct {
	DailyRates []DailyRate `json:"dailyRates"`
}

// NoiseFile is the on-disk shape of ops/runtime/perception-noise.json.
type NoiseFile struct {
	Sources     map[string]SourceNoise `json:"sources"`
	LastUpdated time.Time              `json:"lastUpdated"`
}

// noiseRetentionDays bounds how many most-recent days are kept per source.
const noiseRetentionDays = 30

// noiseAlertConsecutiveDays is the streak length of rate>=noiseAlertRate
// that triggers a NoiseAlert.
const noiseAlertConsecutiveDays = 7
const noiseAlertRate = 0.9

// NoiseAlert flags a source that has been almost entirely filtered for a
// sustained run of days.
type NoiseAlert struct {
	SourceID        string  `json:"sourceId"`
	FilterRate      float64 `json:"filterRate"`
	ConsecutiveDays int     `json:"consecutiveDays"`
	Recommendation  string  `json:"recommendation"`
}

// NoiseTracker reads, updates, and persists ops/runtime/perception-noise.json.
type NoiseTracker struct {
	Vault *vaultstore.Vault
}

// NewNoiseTracker returns a NoiseTracker over v.
func NewNoiseTracker(v *vaultstore.Vault) *NoiseTracker {
	return &NoiseTracker{Vault: v}
}

// Load reads the noise file, tolerating a missing or malformed file as an
// empty tracker.
func (n *NoiseTracker) Load() (NoiseFile, error) {
	text, ok, err := n.Vault.Read(vaultstore.FileNoise)
	if err != nil {
		return NoiseFile{}, err
	}
	if !ok {
		return NoiseFile{Sources: map[string]SourceNoise{}}, nil
	}
	var f NoiseFile
	if err := json.Unmarshal([]byte(text), &f); err != nil {
		return NoiseFile{Sources: map[string]SourceNoise{}}, nil
	}
	if f.Sources == nil {
		f.Sources = map[string]SourceNoise{}
	}
	return f, nil
}

func (n *NoiseTracker) write(f NoiseFile) error {
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal noise file: %w", err)
	}
	return n.Vault.WriteAtomic(vaultstore.FileNoise, string(data))
}

// Record merges today's {admitted,total} for sourceId into the tracker
// (summing with any existing entry for today), prunes to the most recent
// noiseRetentionDays days, and persists. It returns any NoiseAlert the
// updated history now triggers for sourceId.
func (n *NoiseTracker) Record(sourceID string, today string, admitted, total int) (*NoiseAlert, error) {
	f, err := n.Load()
	if err != nil {
		return nil, err
	}

	sn := f.Sources[sourceID]
	found := false
	for i, dr := range sn.DailyRates {
		if dr.Date == today {
			sn.DailyRates[i].Admitted += admitted
			sn.DailyRates[i].Total += total
			sn.DailyRates[i].Rate = rateOf(sn.DailyRates[i].Admitted, sn.DailyRates[i].Total)
			found = true
			break
		}
	}
	if !found {
		sn.DailyRates = append(sn.DailyRates, DailyRate{
			Date: today, Admitted: admitted, Total: total, Rate: rateOf(admitted, total),
		})
	}

	sort.Slice(sn.DailyRates, func(i, j int) bool { return sn.DailyRates[i].Date < sn.DailyRates[j].Date })
	if len(sn.DailyRates) > noiseRetentionDays {
		sn.DailyRates = sn.DailyRates[len(sn.DailyRates)-noiseRetentionDays:]
	}
	f.Sources[sourceID] = sn
	f.LastUpdated = time.Now().UTC()

	if err := n.write(f); err != nil {
		return nil, err
	}
	return checkAlert(sourceID, sn), nil
}

func rateOf(admitted, total int) float64 {
	if total == 0 {
		return 0
	}
	return 1 - float64(admitted)/float64(total)
}

// checkAlert walks sn.DailyRates from most recent backward, counting a
// consecutive streak of days with rate >= noiseAlertRate.
func checkAlert(sourceID string, sn SourceNoise) *NoiseAlert {
	streak := 0
	var sum float64
	for i := len(sn.DailyRates) - 1; i >= 0; i-- {
		if sn.DailyRates[i].Rate < noiseAlertRate {
			break
		}
		streak++
		sum += sn.DailyRates[i].Rate
	}
	if streak < noiseAlertConsecutiveDays {
		return nil
	}
	return &NoiseAlert{
		SourceID:        sourceID,
		FilterRate:      sum / float64(streak),
		ConsecutiveDays: streak,
		Recommendation:  fmt.Sprintf("source %q has filtered >=90%% of captures for %d consecutive days; consider disabling or retuning it", sourceID, streak),
	}
}
