package flows

import (
	"context"
	"errors"
	"strings"

	"github.com/FuncStore/FuncBot/internal/flow"
	"github.com/FuncStore/FuncBot/internal/models"
	"github.com/FuncStore/FuncBot/internal/providers"
	"github.com/FuncStore/FuncBot/internal/render"
)

const (
	weatherCityPrompt = "Which city?"
	weatherModePrompt = "Choose a report: Current, Forecast, or Air quality."
	noSuchCityMsg     = "No such city was found."
)

func (r *Registry) registerWeather(d *flow.Dispatcher) {
	d.Handle(models.FlowWeather, models.StateIdle, "/weather", r.startWeather)

	// Report variants keyed by their button label. Exact routes win over the
	// catch-all city handler below, so a mode pick in the city state fires
	// the fetch instead of being stored as a city name.
	modes := map[string]func(context.Context, string) (string, error){
		"Current":     r.currentWeather,
		"Forecast":    r.forecastWeather,
		"Air quality": r.airQualityReport,
	}
	for label, fetch := range modes {
		d.Handle(models.FlowWeather, models.StateWeatherCity, label, r.weatherReport(fetch))
	}
	d.Handle(models.FlowWeather, models.StateWeatherCity, "", r.storeWeatherCity)

	d.SetBusyState(models.StateWeatherBusy)
}

func (r *Registry) startWeather(ctx context.Context, conversationID, _ string) error {
	if err := r.Dispatcher.EnterFlow(ctx, conversationID, models.FlowWeather, models.StateWeatherCity); err != nil {
		return err
	}
	r.send(ctx, conversationID, weatherCityPrompt)
	return nil
}

func (r *Registry) storeWeatherCity(ctx context.Context, conversationID, input string) error {
	city := strings.TrimSpace(input)
	if city == "" {
		r.Dispatcher.Reprompt(ctx, conversationID, "City name cannot be empty.", weatherCityPrompt)
		return nil
	}
	if err := r.States.MergeData(ctx, conversationID, map[models.DataKey]string{models.DataKeyCity: city}); err != nil {
		return err
	}
	r.send(ctx, conversationID, weatherModePrompt)
	return nil
}

// weatherReport wraps one report variant with the shared city lookup, busy
// transition, and error routing.
func (r *Registry) weatherReport(fetch func(context.Context, string) (string, error)) flow.HandlerFunc {
	return func(ctx context.Context, conversationID, _ string) error {
		city, err := r.States.GetData(ctx, conversationID, models.DataKeyCity)
		if err != nil {
			return err
		}
		if city == "" {
			r.Dispatcher.Reprompt(ctx, conversationID, "Pick a city first.", weatherCityPrompt)
			return nil
		}

		if err := r.States.SetCurrentState(ctx, conversationID, models.FlowWeather, models.StateWeatherBusy); err != nil {
			return err
		}

		text, err := fetch(ctx, city)
		switch {
		case errors.Is(err, providers.ErrNoSuchCity):
			if err := r.States.SetCurrentState(ctx, conversationID, models.FlowWeather, models.StateWeatherCity); err != nil {
				return err
			}
			r.Dispatcher.Reprompt(ctx, conversationID, noSuchCityMsg, weatherCityPrompt)
			return nil
		case err != nil:
			r.send(ctx, conversationID, err.Error())
			return r.finish(ctx, conversationID)
		}

		r.send(ctx, conversationID, text)
		return r.finish(ctx, conversationID)
	}
}

func (r *Registry) currentWeather(ctx context.Context, city string) (string, error) {
	report, err := r.Weather.Current(ctx, city)
	if err != nil {
		return "", err
	}
	return render.Weather(report), nil
}

func (r *Registry) forecastWeather(ctx context.Context, city string) (string, error) {
	reports, err := r.Weather.Forecast(ctx, city)
	if err != nil {
		return "", err
	}
	return render.WeatherSeries(reports), nil
}

func (r *Registry) airQualityReport(ctx context.Context, city string) (string, error) {
	report, err := r.Weather.AirQuality(ctx, city)
	if err != nil {
		return "", err
	}
	return render.AirQuality(report), nil
}
