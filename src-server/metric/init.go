package metric

import (
	"context"
	"log/slog"
	"time"

	"manobal/src-server/model"
	"manobal/src-server/utils"

	"github.com/prometheus/client_golang/prometheus"
)

// Registers c, tolerating a previous registration of the same collector.
func register(name string, c prometheus.Collector) prometheus.Collector {
	if err := prometheus.Register(c); err != nil {
		are, ok := err.(prometheus.AlreadyRegisteredError)
		if !ok {
			slog.Error("can't register metric", "metric", name, "error", err)
			return c
		}
		c = are.ExistingCollector
	}
	slog.Debug("metric registered", "metric", name)
	return c
}

func unregister(name string, c prometheus.Collector) {
	switch prometheus.Unregister(c) {
	case true:
		slog.Debug("metric unregistered", "metric", name)
	case false:
		slog.Warn("metric not registered", "metric", name)
	}
}

// Latest sample from ch, reset to 0 when no sample arrived for clearTickerInterval.
func latencyGauge(as *utils.AppState, name string, help string, ch chan float64, clearTickerInterval time.Duration) {
	gauge := register(name, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: name,
		Help: help,
	})).(prometheus.Gauge)
	gauge.Set(0)

	gracefulShutdownCh := as.CreateGracefulShutdownChan()
	go func() {
		clearTicker := time.NewTicker(clearTickerInterval)
		defer clearTicker.Stop()
		for {
			select {
			case <-*gracefulShutdownCh:
				unregister(name, gauge)
				return
			case latency := <-ch:
				gauge.Set(latency)
				clearTicker.Reset(clearTickerInterval)
			case <-clearTicker.C:
				gauge.Set(0)
			}
		}
	}()
}

// Polls sample every tickerInterval.
func sampledGauge(as *utils.AppState, name string, help string, sample func() (float64, error), tickerInterval time.Duration) {
	gauge := register(name, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: name,
		Help: help,
	})).(prometheus.Gauge)
	gauge.Set(0)

	gracefulShutdownCh := as.CreateGracefulShutdownChan()
	go func() {
		ticker := time.NewTicker(tickerInterval)
		defer ticker.Stop()
		for {
			select {
			case <-*gracefulShutdownCh:
				unregister(name, gauge)
				return
			case <-ticker.C:
				value, err := sample()
				if err != nil {
					slog.Error("can't sample metric", "metric", name, "error", err)
					continue
				}
				gauge.Set(value)
			}
		}
	}()
}

func checkInCounters(as *utils.AppState) {
	transitions := register("manobal_check_in_transitions_total", prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "manobal_check_in_transitions_total",
		Help: "Check-in state changes, by the state entered",
	}, []string{"state"})).(*prometheus.CounterVec)
	messages := register("manobal_messages_total", prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "manobal_messages_total",
		Help: "Inbound chat messages, by the part of the bot that answered them",
	}, []string{"route"})).(*prometheus.CounterVec)
	warnings := register("manobal_sweep_warnings_total", prometheus.NewCounter(prometheus.CounterOpts{
		Name: "manobal_sweep_warnings_total",
		Help: "Timeout warnings delivered by the sweeper",
	})).(prometheus.Counter)
	expirations := register("manobal_sweep_expirations_total", prometheus.NewCounter(prometheus.CounterOpts{
		Name: "manobal_sweep_expirations_total",
		Help: "Check-ins expired by the sweeper",
	})).(prometheus.Counter)

	// pre-create the label values so every series shows up from the start
	for _, state := range model.CheckInStates {
		transitions.WithLabelValues(string(state))
	}

	gracefulShutdownCh := as.CreateGracefulShutdownChan()
	go func() {
		for {
			select {
			case <-*gracefulShutdownCh:
				unregister("manobal_check_in_transitions_total", transitions)
				unregister("manobal_messages_total", messages)
				unregister("manobal_sweep_warnings_total", warnings)
				unregister("manobal_sweep_expirations_total", expirations)
				return
			case state := <-as.MetricChans.CheckInTransition:
				transitions.WithLabelValues(string(state)).Inc()
			case route := <-as.MetricChans.MessageRoute:
				messages.WithLabelValues(route).Inc()
			case n := <-as.MetricChans.SweepWarnings:
				warnings.Add(float64(n))
			case n := <-as.MetricChans.SweepExpirations:
				expirations.Add(float64(n))
			}
		}
	}()
}

func Init(as *utils.AppState) {
	tickerInterval := as.Config.GetMetricCollectionInterval()
	clearTickerInterval := as.Config.GetMetricCollectionInterval() * 2

	sampledGauge(as, "manobal_database_empty_read_microsec",
		"The latency of an empty database read in microseconds",
		func() (float64, error) {
			latency, err := database(as)
			return float64(latency.Microseconds()), err
		}, tickerInterval)
	sampledGauge(as, "manobal_check_ins_active",
		"Check-ins neither completed nor expired",
		func() (float64, error) {
			count, err := as.BunDB.
				NewSelect().
				Model((*model.CheckIn)(nil)).
				Where("is_completed = ?", false).
				Where("is_expired = ?", false).
				Count(context.Background())
			return float64(count), err
		}, tickerInterval)

	latencyGauge(as, "manobal_database_read_microsec",
		"The latency of a database read in microseconds",
		as.MetricChans.DatabaseRead, clearTickerInterval)
	latencyGauge(as, "manobal_database_write_microsec",
		"The latency of a database write in microseconds",
		as.MetricChans.DatabaseWrite, clearTickerInterval)
	latencyGauge(as, "manobal_twilio_send_message_microsec",
		"The latency of a WhatsApp message send in microseconds",
		as.MetricChans.TwilioSendMessage, clearTickerInterval)

	if as.DgSession != nil {
		latencyGauge(as, "manobal_discord_send_message_microsec",
			"The latency of a discord message send in microseconds",
			as.MetricChans.DiscordSendMessage, clearTickerInterval)
		sampledGauge(as, "manobal_discord_heartbeat_latency_microsec",
			"The latency of a discord heartbeat in microseconds",
			func() (float64, error) {
				return float64(as.DgSession.HeartbeatLatency().Microseconds()), nil
			}, tickerInterval)
	}

	checkInCounters(as)
}
