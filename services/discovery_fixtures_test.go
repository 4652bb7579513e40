package services

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sort"
	"testing"
	"time"

	"nearby_server/models"
	"nearby_server/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixtureScenario struct {
	name     string
	lat, lon float64
	radius   int
	seed     int64
}

var fixtureNetworks = []string{homeNetwork, otherNetwork, "AA:BB:CC:DD:EE:03"}

// scatter places a point within about twice the radius of the center, wrapping longitude.
func scatter(rng *rand.Rand, sc fixtureScenario) (float64, float64) {
	latSpread := 2 * float64(sc.radius) / 111_195.0
	lat := math.Max(-90, math.Min(90, sc.lat+(rng.Float64()*2-1)*latSpread))

	lonSpread := 180.0
	if c := math.Cos(sc.lat * math.Pi / 180); c > 1e-3 {
		lonSpread = math.Min(latSpread/c, 180)
	}
	lon := sc.lon + (rng.Float64()*2-1)*lonSpread
	if lon > 180 {
		lon -= 360
	}
	if lon < -180 {
		lon += 360
	}
	return lat, lon
}

func randomAge(rng *rand.Rand, max time.Duration) time.Duration {
	return time.Duration(rng.Int63n(int64(max)))
}

// randomPopulation builds a requester "me" at the scenario center plus n random users,
// and a Bluetooth scan covering part of their devices and a few unknown ones.
func randomPopulation(rng *rand.Rand, sc fixtureScenario, n int) ([]models.UserProfile, []string) {
	profiles := []models.UserProfile{
		testProfile("me", withGPS(sc.lat, sc.lon, 0), withWiFi(homeNetwork, 0), withBluetooth("02:00:00:00:FF:FF", 0)),
	}
	var scan []string
	for i := 0; i < n; i++ {
		p := testProfile(fmt.Sprintf("u%03d", i))
		p.IsDiscoverable = rng.Float64() < 0.8
		p.IsActive = rng.Float64() < 0.85
		p.Age = 18 + rng.Intn(50)

		if rng.Float64() < 0.9 {
			lat, lon := scatter(rng, sc)
			p.GPS = &models.GPSSignal{Latitude: lat, Longitude: lon, UpdatedAt: testNow.Add(-randomAge(rng, 48*time.Hour))}
		}
		if rng.Float64() < 0.8 {
			age := randomAge(rng, 48*time.Hour)
			if rng.Float64() < 0.1 {
				age = models.WiFiFreshness
			}
			p.WiFi = &models.WiFiSignal{NetworkID: fixtureNetworks[rng.Intn(len(fixtureNetworks))], UpdatedAt: testNow.Add(-age)}
		}
		device := fmt.Sprintf("02:00:00:00:%02X:%02X", i/256, i%256)
		if rng.Float64() < 0.8 {
			p.Bluetooth = &models.BluetoothSignal{DeviceID: device, UpdatedAt: testNow.Add(-randomAge(rng, 10*24*time.Hour))}
		}
		if rng.Float64() < 0.5 {
			scan = append(scan, device)
		}
		profiles = append(profiles, p)
	}
	for i := 0; i < 20; i++ {
		scan = append(scan, fmt.Sprintf("06:00:00:00:00:%02X", i))
	}
	rng.Shuffle(len(scan), func(i, j int) { scan[i], scan[j] = scan[j], scan[i] })
	return profiles, scan
}

type expectedCandidate struct {
	id       string
	distance float64
	updated  time.Time
}

func topIDs(in []expectedCandidate, byDistance bool) []string {
	sort.Slice(in, func(i, j int) bool {
		a, b := in[i], in[j]
		if byDistance && a.distance != b.distance {
			return a.distance < b.distance
		}
		if !byDistance && !a.updated.Equal(b.updated) {
			return a.updated.After(b.updated)
		}
		return a.id < b.id
	})
	ids := make([]string, 0, len(in))
	for _, c := range in {
		ids = append(ids, c.id)
	}
	if len(ids) > models.MaxCandidates {
		ids = ids[:models.MaxCandidates]
	}
	return ids
}

func visibleTo(p models.UserProfile) bool {
	return p.UserID != "me" && p.IsDiscoverable && p.IsActive
}

func TestDiscoverMatchesIndependentSelection(t *testing.T) {
	ctx := context.Background()
	scenarios := []fixtureScenario{
		{"mid latitude", 40.7128, -74.0060, 5000, 1},
		{"east of the antimeridian", -16.5, 179.995, 20000, 2},
		{"west of the antimeridian", 52.0, -179.99, 3000, 3},
		{"near the north pole", 89.9, 10, 50000, 4},
		{"near the south pole", -89.95, -120, 15000, 5},
		{"smallest radius", -33.86, 151.21, 100, 6},
	}

	for _, sc := range scenarios {
		t.Run(sc.name, func(t *testing.T) {
			rng := rand.New(rand.NewSource(sc.seed))
			profiles, scan := randomPopulation(rng, sc, 200)
			f := newDiscoveryFixture(t, DiscoveryOptions{}, profiles...)

			scanned := make(map[string]struct{}, len(scan))
			for _, id := range scan {
				scanned[id] = struct{}{}
			}
			var gps, wifi, bt []expectedCandidate
			for _, p := range profiles {
				if !visibleTo(p) {
					continue
				}
				if p.GPS != nil {
					if d := utils.HaversineDistance(sc.lat, sc.lon, p.GPS.Latitude, p.GPS.Longitude); d <= float64(sc.radius) {
						gps = append(gps, expectedCandidate{id: p.UserID, distance: d})
					}
				}
				if p.WiFi != nil && p.WiFi.NetworkID == homeNetwork && !p.WiFi.UpdatedAt.Before(testNow.Add(-24*time.Hour)) {
					wifi = append(wifi, expectedCandidate{id: p.UserID, updated: p.WiFi.UpdatedAt})
				}
				if p.Bluetooth != nil && !p.Bluetooth.UpdatedAt.Before(testNow.Add(-7*24*time.Hour)) {
					if _, ok := scanned[p.Bluetooth.DeviceID]; ok {
						bt = append(bt, expectedCandidate{id: p.UserID, updated: p.Bluetooth.UpdatedAt})
					}
				}
			}

			result, err := f.svc.Discover(ctx, gpsRequest("me", sc.radius))
			require.NoError(t, err)
			assert.Equal(t, topIDs(gps, true), userIDs(result))
			assert.Equal(t, len(result.Users), result.TotalFound)
			for _, u := range result.Users {
				require.NotNil(t, u.Proximity.DistanceMeters)
				assert.LessOrEqual(t, *u.Proximity.DistanceMeters, float64(sc.radius))
			}

			result, err = f.svc.Discover(ctx, models.DiscoveryRequest{RequesterID: "me", Channel: models.ChannelWiFi})
			require.NoError(t, err)
			assert.Equal(t, topIDs(wifi, false), userIDs(result))

			result, err = f.svc.Discover(ctx, models.DiscoveryRequest{
				RequesterID: "me",
				Channel:     models.ChannelBluetooth,
				Bluetooth:   &models.BluetoothParams{ObservedDeviceIDs: scan},
			})
			require.NoError(t, err)
			assert.Equal(t, topIDs(bt, false), userIDs(result))
		})
	}
}
