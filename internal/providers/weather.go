// Package providers implements the external-API functions behind the
// conversational flows. Every function runs a single bounded call (or a
// fixed chain of them) through the webapi wrapper and maps failing
// envelopes to user-facing errors.
package providers

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/FuncStore/FuncBot/internal/webapi"
)

// ErrNoSuchCity is returned when geocoding resolves to zero locations. It is
// a domain condition, not a transport failure, and callers reprompt on it.
var ErrNoSuchCity = errors.New("no such city exists")

// Default OpenWeatherMap endpoints.
const (
	owmGeoURL      = "https://api.openweathermap.org/geo/1.0/direct"
	owmCurrentURL  = "https://api.openweathermap.org/data/2.5/weather"
	owmForecastURL = "https://api.openweathermap.org/data/2.5/forecast"
	owmAirURL      = "https://api.openweathermap.org/data/2.5/air_pollution"
)

// WeatherReport is one weather sample for a city, either current conditions
// or a single forecast slot.
type WeatherReport struct {
	City        string
	Date        string
	Description string
	TempC       float64
	FeelsLikeC  float64
	PressureHPa int
	HumidityPct int
	VisibilityM int
	WindMS      float64
	CloudsPct   int
}

// AirQualityReport holds the air-quality index and per-component
// concentrations for a city.
type AirQualityReport struct {
	City       string
	Index      int
	Components map[string]float64
}

// WeatherClient answers weather, forecast, and air-pollution queries through
// the OpenWeatherMap API. Every query geocodes the city first; an unknown
// city is reported as ErrNoSuchCity without further calls.
type WeatherClient struct {
	api    *webapi.Client
	apiKey string

	geoURL      string
	currentURL  string
	forecastURL string
	airURL      string
}

// NewWeatherClient creates a weather client using the standard
// OpenWeatherMap endpoints.
func NewWeatherClient(api *webapi.Client, apiKey string) *WeatherClient {
	return &WeatherClient{
		api:         api,
		apiKey:      apiKey,
		geoURL:      owmGeoURL,
		currentURL:  owmCurrentURL,
		forecastURL: owmForecastURL,
		airURL:      owmAirURL,
	}
}

type owmSample struct {
	Main struct {
		Temp      float64 `json:"temp"`
		FeelsLike float64 `json:"feels_like"`
		Pressure  int     `json:"pressure"`
		Humidity  int     `json:"humidity"`
	} `json:"main"`
	Weather []struct {
		Main        string `json:"main"`
		Description string `json:"description"`
	} `json:"weather"`
	Wind struct {
		Speed float64 `json:"speed"`
	} `json:"wind"`
	Clouds struct {
		All int `json:"all"`
	} `json:"clouds"`
	Visibility int    `json:"visibility"`
	DateText   string `json:"dt_txt"`
}

func (c *WeatherClient) geocode(ctx context.Context, city string) (lat, lon float64, err error) {
	var locations []struct {
		Lat float64 `json:"lat"`
		Lon float64 `json:"lon"`
	}
	u := fmt.Sprintf("%s?q=%s&limit=1&appid=%s", c.geoURL, url.QueryEscape(city), c.apiKey)
	if env := c.api.GetInto(ctx, u, nil, &locations); !env.OK() {
		return 0, 0, errors.New(env.Err)
	}
	if len(locations) == 0 {
		return 0, 0, ErrNoSuchCity
	}
	return locations[0].Lat, locations[0].Lon, nil
}

// Current returns the current conditions for city.
func (c *WeatherClient) Current(ctx context.Context, city string) (WeatherReport, error) {
	lat, lon, err := c.geocode(ctx, city)
	if err != nil {
		return WeatherReport{}, err
	}
	var sample owmSample
	u := fmt.Sprintf("%s?lat=%f&lon=%f&units=metric&appid=%s", c.currentURL, lat, lon, c.apiKey)
	if env := c.api.GetInto(ctx, u, nil, &sample); !env.OK() {
		return WeatherReport{}, errors.New(env.Err)
	}
	return reportFromSample(city, sample), nil
}

// Forecast returns the five-day forecast for city, one noon sample per day.
func (c *WeatherClient) Forecast(ctx context.Context, city string) ([]WeatherReport, error) {
	lat, lon, err := c.geocode(ctx, city)
	if err != nil {
		return nil, err
	}
	var forecast struct {
		List []owmSample `json:"list"`
	}
	u := fmt.Sprintf("%s?lat=%f&lon=%f&units=metric&appid=%s", c.forecastURL, lat, lon, c.apiKey)
	if env := c.api.GetInto(ctx, u, nil, &forecast); !env.OK() {
		return nil, errors.New(env.Err)
	}
	var reports []WeatherReport
	for _, sample := range forecast.List {
		if !strings.Contains(sample.DateText, "12:00:00") {
			continue
		}
		reports = append(reports, reportFromSample(city, sample))
	}
	return reports, nil
}

// AirQuality returns the air-quality index and component concentrations for
// city.
func (c *WeatherClient) AirQuality(ctx context.Context, city string) (AirQualityReport, error) {
	lat, lon, err := c.geocode(ctx, city)
	if err != nil {
		return AirQualityReport{}, err
	}
	var pollution struct {
		List []struct {
			Main struct {
				AQI int `json:"aqi"`
			} `json:"main"`
			Components map[string]float64 `json:"components"`
		} `json:"list"`
	}
	u := fmt.Sprintf("%s?lat=%f&lon=%f&appid=%s", c.airURL, lat, lon, c.apiKey)
	if env := c.api.GetInto(ctx, u, nil, &pollution); !env.OK() {
		return AirQualityReport{}, errors.New(env.Err)
	}
	if len(pollution.List) == 0 {
		return AirQualityReport{}, fmt.Errorf("no air pollution data for %s", city)
	}
	return AirQualityReport{
		City:       city,
		Index:      pollution.List[0].Main.AQI,
		Components: pollution.List[0].Components,
	}, nil
}

func reportFromSample(city string, sample owmSample) WeatherReport {
	report := WeatherReport{
		City:        city,
		Date:        sample.DateText,
		TempC:       sample.Main.Temp,
		FeelsLikeC:  sample.Main.FeelsLike,
		PressureHPa: sample.Main.Pressure,
		HumidityPct: sample.Main.Humidity,
		VisibilityM: sample.Visibility,
		WindMS:      sample.Wind.Speed,
		CloudsPct:   sample.Clouds.All,
	}
	if len(sample.Weather) > 0 {
		report.Description = sample.Weather[0].Description
	}
	return report
}
