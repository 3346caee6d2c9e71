// Package render builds the message texts sent to users. It holds no
// decision logic; flows decide what to say, render decides how it reads.
package render

import (
	"fmt"
	"math"
	"strings"

	"github.com/FuncStore/FuncBot/internal/providers"
)

// Weather formats one weather sample as a report block.
func Weather(r providers.WeatherReport) string {
	var b strings.Builder
	if r.Date != "" {
		fmt.Fprintf(&b, "Temperature on %s\n\n%s\n\n", r.Date, r.City)
	} else {
		fmt.Fprintf(&b, "Current temperature\n\n%s\n\n", r.City)
	}
	if r.Description != "" {
		fmt.Fprintf(&b, "%s\n\n", capitalize(r.Description))
	}
	fmt.Fprintf(&b, "Temperature: %d C\n", int(math.Round(r.TempC)))
	fmt.Fprintf(&b, "Feels like: %d C\n", int(math.Round(r.FeelsLikeC)))
	fmt.Fprintf(&b, "Pressure: %d hPa\n", r.PressureHPa)
	fmt.Fprintf(&b, "Humidity: %d %%\n", r.HumidityPct)
	fmt.Fprintf(&b, "Visibility: %d m\n", r.VisibilityM)
	fmt.Fprintf(&b, "Wind speed: %.1f m/s\n", r.WindMS)
	fmt.Fprintf(&b, "Cloud cover: %d %%", r.CloudsPct)
	return b.String()
}

// WeatherSeries formats a multi-day forecast, one block per sample.
func WeatherSeries(reports []providers.WeatherReport) string {
	blocks := make([]string, 0, len(reports))
	for _, r := range reports {
		blocks = append(blocks, Weather(r))
	}
	return strings.Join(blocks, "\n\n")
}

// aqiLabels maps the OpenWeatherMap air-quality index to a description.
var aqiLabels = map[int]string{
	1: "Good",
	2: "Fair",
	3: "Moderate",
	4: "Poor",
	5: "Very poor",
}

// AirQuality formats an air-pollution report with the index label and
// per-component concentrations.
func AirQuality(r providers.AirQualityReport) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Air pollution level\n\n%s\n\n", capitalize(r.City))
	label, ok := aqiLabels[r.Index]
	if !ok {
		label = fmt.Sprintf("index %d", r.Index)
	}
	fmt.Fprintf(&b, "Air quality index: %s\n\n", label)
	for _, component := range []string{"co", "no", "no2", "o3", "so2", "pm2_5", "pm10", "nh3"} {
		value, ok := r.Components[component]
		if !ok {
			continue
		}
		fmt.Fprintf(&b, "%s: %.2f\n", component, value)
	}
	return strings.TrimRight(b.String(), "\n")
}

// MovieDescription formats one movie record. Optional fields are skipped
// when absent, long descriptions are clipped.
func MovieDescription(m providers.Movie) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n\n", m.Name)
	if m.AlternativeName != "" {
		fmt.Fprintf(&b, "Also known as: %s\n", m.AlternativeName)
	}
	if m.Type != "" {
		fmt.Fprintf(&b, "Type: %s\n", m.Type)
	}
	if m.Year != 0 {
		fmt.Fprintf(&b, "Year: %d\n", m.Year)
	}
	if m.Description != "" {
		description := m.Description
		if len(description) > 200 {
			description = description[:200] + "...."
		}
		fmt.Fprintf(&b, "Description: %s\n", description)
	}
	if m.ShortDesc != "" {
		fmt.Fprintf(&b, "In short: %s\n", m.ShortDesc)
	}
	if m.LengthMinutes != 0 {
		fmt.Fprintf(&b, "Length: %d min\n", m.LengthMinutes)
	}
	if m.Rating.KP != 0 {
		fmt.Fprintf(&b, "Kinopoisk rating: %.1f\n", m.Rating.KP)
	}
	if m.Rating.IMDB != 0 {
		fmt.Fprintf(&b, "IMDb rating: %.1f\n", m.Rating.IMDB)
	}
	if genres := m.GenreNames(); len(genres) > 0 {
		fmt.Fprintf(&b, "Genres: %s\n", strings.Join(genres, ","))
	}
	if countries := m.CountryNames(); len(countries) > 0 {
		fmt.Fprintf(&b, "Countries: %s\n", strings.Join(countries, ","))
	}
	return strings.TrimRight(b.String(), "\n")
}

// IPReport formats an IP geolocation report, one field per line.
func IPReport(r providers.IPReport) string {
	var b strings.Builder
	fmt.Fprintf(&b, "ip: %s\n", r.IP)
	fmt.Fprintf(&b, "hostname: %s\n", r.Hostname)
	fmt.Fprintf(&b, "type: %s\n", r.Type)
	fmt.Fprintf(&b, "continent: %s (%s)\n", r.ContinentName, r.ContinentCode)
	fmt.Fprintf(&b, "country: %s (%s)\n", r.CountryName, r.CountryCode)
	fmt.Fprintf(&b, "region: %s (%s)\n", r.RegionName, r.RegionCode)
	fmt.Fprintf(&b, "city: %s\n", r.City)
	fmt.Fprintf(&b, "zip: %s\n", r.Zip)
	fmt.Fprintf(&b, "latitude: %.4f\n", r.Latitude)
	fmt.Fprintf(&b, "longitude: %.4f\n", r.Longitude)
	fmt.Fprintf(&b, "capital: %s\n", r.Location.Capital)
	fmt.Fprintf(&b, "calling code: +%s\n", r.Location.CallingCode)
	fmt.Fprintf(&b, "flag: %s\n", r.Location.CountryFlagEmoji)
	fmt.Fprintf(&b, "eu member: %t", r.Location.IsEU)
	return b.String()
}

// Progress formats a task progress line for a clamped percentage.
func Progress(percent float64) string {
	return fmt.Sprintf("Generating... %d%%", int(percent))
}

// DownloadProgress formats a batch download counter.
func DownloadProgress(done, total int) string {
	return fmt.Sprintf("Downloaded %d of %d...", done, total)
}

// cancellingFrames animate the indicator shown while a cancelled task winds
// down.
var cancellingFrames = []string{"", ".", "..", "...", "...."}

// Cancelling returns the cancelling indicator for an animation tick.
func Cancelling(tick int) string {
	if tick < 0 {
		tick = -tick
	}
	return "Cancelling" + cancellingFrames[tick%len(cancellingFrames)]
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
