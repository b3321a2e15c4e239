package www

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"nodeconsole/config"
)

// endpointForm is an endpoint as the API reads and writes it, with the
// timeout as a duration string ("15s").
type endpointForm struct {
	URL     string `json:"url"`
	Timeout string `json:"timeout,omitempty"`
}

type endpointsForm struct {
	LocalAgent endpointForm `json:"local_agent"`
	Hub        endpointForm `json:"hub"`
}

func (f endpointForm) endpoint(name string) (config.EndpointConfig, error) {
	ec := config.EndpointConfig{URL: f.URL}
	if f.Timeout == "" {
		return ec, nil
	}
	d, err := time.ParseDuration(f.Timeout)
	if err != nil {
		return ec, fmt.Errorf("%s.timeout: %w", name, err)
	}
	ec.Timeout = d
	return ec, nil
}

func endpointsView(cfg *config.Config) endpointsForm {
	agent, hub := cfg.Endpoints()
	return endpointsForm{
		LocalAgent: endpointForm{URL: agent.URL, Timeout: agent.Timeout.String()},
		Hub:        endpointForm{URL: hub.URL, Timeout: hub.Timeout.String()},
	}
}

func (h *Handlers) apiEndpoints(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, endpointsView(h.engine.AppConfig()))
}

// apiSaveEndpoints updates the upstream endpoints, saves the config file when
// there is one and re-points the running clients.
func (h *Handlers) apiSaveEndpoints(w http.ResponseWriter, r *http.Request) {
	var form endpointsForm
	if err := json.NewDecoder(r.Body).Decode(&form); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	agent, err := form.LocalAgent.endpoint("local_agent")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	hub, err := form.Hub.endpoint("hub")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	cfg := h.engine.AppConfig()
	if err := cfg.UpdateEndpoints(agent, hub); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if path := h.engine.ConfigPath(); path != "" {
		if err := cfg.Save(path); err != nil {
			log.Printf("config: save error: %v", err)
			writeError(w, http.StatusInternalServerError, "failed to save: "+err.Error())
			return
		}
	}

	h.engine.ReconfigureEndpoints()
	log.Printf("config: endpoints saved")
	writeJSON(w, endpointsView(cfg))
}
