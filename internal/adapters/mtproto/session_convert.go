package mtproto

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/gotd/td/crypto"
	"github.com/gotd/td/session"
	"github.com/gotd/td/tg"
)

// ErrUnsupportedSessionFormat возвращается, если формат сессии не распознан.
var ErrUnsupportedSessionFormat = errors.New("неподдерживаемый формат MTProto-сессии")

// sessionDecoder пытается прочитать сессию в одном из известных форматов.
type sessionDecoder struct {
	name   string
	decode func(raw []byte) (session.Data, error)
}

var sessionDecoders = []sessionDecoder{
	{name: "telethon-account", decode: decodeTelethonAccount},
	{name: "telethon-rows", decode: decodeTelethonRows},
	{name: "telethon-string", decode: decodeTelethonString},
}

// NormalizeSession приводит сессию к JSON-формату gotd.
// Возвращает имя исходного формата; для уже нормализованной сессии это "gotd".
func NormalizeSession(raw []byte) ([]byte, string, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, "", errors.New("MTProto-сессия пуста")
	}

	var envelope struct {
		Version int `json:"Version"`
	}
	if json.Unmarshal(trimmed, &envelope) == nil && envelope.Version != 0 {
		return bytes.Clone(trimmed), "gotd", nil
	}

	for _, d := range sessionDecoders {
		data, err := d.decode(trimmed)
		if err != nil {
			continue
		}
		out, err := encodeSession(data)
		if err != nil {
			return nil, "", fmt.Errorf("%s: %w", d.name, err)
		}
		return out, d.name, nil
	}
	return nil, "", ErrUnsupportedSessionFormat
}

// decodeTelethonAccount читает экспорт аккаунта со строковой сессией в extra_params.
func decodeTelethonAccount(raw []byte) (session.Data, error) {
	var account struct {
		ExtraParams string `json:"extra_params"`
	}
	if err := json.Unmarshal(raw, &account); err != nil {
		return session.Data{}, err
	}
	if account.ExtraParams == "" {
		return session.Data{}, errors.New("нет extra_params")
	}
	return decodeTelethonString([]byte(account.ExtraParams))
}

// decodeTelethonRows читает выгрузку таблицы sessions из SQLite Telethon.
func decodeTelethonRows(raw []byte) (session.Data, error) {
	var rows []struct {
		DCID          int    `json:"dc_id"`
		ServerAddress string `json:"server_address"`
		Port          int    `json:"port"`
		AuthKey       string `json:"auth_key"`
	}
	if err := json.Unmarshal(raw, &rows); err != nil {
		return session.Data{}, err
	}
	for _, row := range rows {
		if row.AuthKey == "" || row.ServerAddress == "" || row.Port == 0 {
			continue
		}
		return sessionFromHexKey(row.DCID, row.ServerAddress, row.Port, row.AuthKey)
	}
	return session.Data{}, errors.New("нет строк с ключом авторизации")
}

func decodeTelethonString(raw []byte) (session.Data, error) {
	candidate := strings.Trim(strings.TrimSpace(string(raw)), "\"'")
	if candidate == "" {
		return session.Data{}, errors.New("пустая строка сессии")
	}
	data, err := session.TelethonSession(candidate)
	if err != nil {
		return session.Data{}, err
	}
	if data.Config.ThisDC == 0 {
		data.Config.ThisDC = data.DC
	}
	if len(data.Config.DCOptions) == 0 {
		if host, portStr, err := net.SplitHostPort(data.Addr); err == nil {
			if port, err := strconv.Atoi(portStr); err == nil {
				data.Config.DCOptions = []tg.DCOption{{ID: data.DC, IPAddress: host, Port: port}}
			}
		}
	}
	return *data, nil
}

func sessionFromHexKey(dc int, host string, port int, keyHex string) (session.Data, error) {
	rawKey, err := hex.DecodeString(strings.Trim(strings.TrimSpace(keyHex), "'\""))
	if err != nil {
		return session.Data{}, fmt.Errorf("auth_key: %w", err)
	}
	var key crypto.Key
	if len(rawKey) != len(key) {
		return session.Data{}, fmt.Errorf("auth_key: длина %d байт", len(rawKey))
	}
	copy(key[:], rawKey)
	id := key.WithID().ID

	return session.Data{
		Config: session.Config{
			ThisDC:    dc,
			DCOptions: []tg.DCOption{{ID: dc, IPAddress: host, Port: port}},
		},
		DC:        dc,
		Addr:      net.JoinHostPort(host, strconv.Itoa(port)),
		AuthKey:   bytes.Clone(key[:]),
		AuthKeyID: bytes.Clone(id[:]),
	}, nil
}

func encodeSession(data session.Data) ([]byte, error) {
	return json.Marshal(struct {
		Version int          `json:"Version"`
		Data    session.Data `json:"Data"`
	}{Version: 1, Data: data})
}
