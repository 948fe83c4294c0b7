// Copyright 2015, 2016 Ethcore (UK) Ltd.
// This file is part of Parity.

// Parity is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

// Parity is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.

// You should have received a copy of the GNU General Public License
// along with Parity.  If not, see <http://www.gnu.org/licenses/>.

// Package rpcfront is a narrow JSON-RPC front door: block lookups and raw
// transaction submission, nothing else. There is no eth_call, no filters,
// no subscriptions — those all need an EVM or a log index this module does
// not own. It is deliberately built on net/http and encoding/json rather
// than a full JSON-RPC server framework.
package rpcfront

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/log"
	"github.com/rs/cors"

	"github.com/ethcorego/ethcore/client"
	"github.com/ethcorego/ethcore/core/txqueue"
)

// Server answers a small, fixed set of JSON-RPC methods against a Client and
// a transaction Queue.
type Server struct {
	client *client.Client
	queue  *txqueue.Queue
	mux    http.Handler
}

// New builds a Server. corsDomains is passed straight through to
// github.com/rs/cors; an empty list disables CORS entirely.
func New(c *client.Client, queue *txqueue.Queue, corsDomains []string) *Server {
	s := &Server{client: c, queue: queue}
	var handler http.Handler = http.HandlerFunc(s.serveHTTP)
	if len(corsDomains) > 0 {
		handler = cors.New(cors.Options{
			AllowedOrigins: corsDomains,
			AllowedMethods: []string{http.MethodPost, http.MethodOptions},
		}).Handler(handler)
	}
	s.mux = handler
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.mux.ServeHTTP(w, r) }

type request struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
	ID      json.RawMessage `json:"id"`
}

type response struct {
	JSONRPC string          `json:"jsonrpc"`
	Result  interface{}     `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
	ID      json.RawMessage `json:"id"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (s *Server) serveHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "rpcfront: only POST is supported", http.StatusMethodNotAllowed)
		return
	}
	var req request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, nil, -32700, "parse error")
		return
	}

	result, err := s.dispatch(req.Method, req.Params)
	if err != nil {
		log.Warn("rpcfront: method failed", "method", req.Method, "err", err)
		writeError(w, req.ID, -32000, err.Error())
		return
	}
	writeResult(w, req.ID, result)
}

func (s *Server) dispatch(method string, params json.RawMessage) (interface{}, error) {
	switch method {
	case "eth_blockNumber":
		return fmt.Sprintf("0x%x", s.client.BestHeader().Number), nil
	case "eth_getBlockByHash":
		var p [1]string
		if err := json.Unmarshal(params, &p); err != nil {
			return nil, fmt.Errorf("rpcfront: bad params: %w", err)
		}
		return s.getBlockByHash(common.HexToHash(p[0]))
	case "eth_getBlockByNumber":
		var p [2]string
		if err := json.Unmarshal(params, &p); err != nil {
			return nil, fmt.Errorf("rpcfront: bad params: %w", err)
		}
		return s.getBlockByNumber(p[0])
	case "eth_sendRawTransaction":
		var p [1]string
		if err := json.Unmarshal(params, &p); err != nil {
			return nil, fmt.Errorf("rpcfront: bad params: %w", err)
		}
		return s.sendRawTransaction(p[0])
	default:
		return nil, fmt.Errorf("rpcfront: unknown method %q", method)
	}
}

func (s *Server) getBlockByHash(hash common.Hash) (interface{}, error) {
	header, err := s.client.ChainIndex().GetHeader(hash)
	if err != nil {
		return nil, nil // unknown hash: JSON-RPC convention is a null result, not an error
	}
	return headerView(header), nil
}

func (s *Server) getBlockByNumber(tag string) (interface{}, error) {
	if tag == "latest" {
		return headerView(s.client.BestHeader()), nil
	}
	var number uint64
	if _, err := fmt.Sscanf(tag, "0x%x", &number); err != nil {
		return nil, fmt.Errorf("rpcfront: bad block number %q", tag)
	}
	hash, ok := s.client.ChainIndex().CanonicalHash(number)
	if !ok {
		return nil, nil
	}
	header, err := s.client.ChainIndex().GetHeader(hash)
	if err != nil {
		return nil, nil
	}
	return headerView(header), nil
}

func (s *Server) sendRawTransaction(rawHex string) (interface{}, error) {
	var raw []byte
	if _, err := fmt.Sscanf(rawHex, "0x%x", &raw); err != nil {
		return nil, fmt.Errorf("rpcfront: bad transaction hex: %w", err)
	}
	tx := new(types.Transaction)
	if err := tx.UnmarshalBinary(raw); err != nil {
		return nil, fmt.Errorf("rpcfront: decode transaction: %w", err)
	}
	if err := s.queue.Add(tx); err != nil {
		return nil, err
	}
	return tx.Hash().Hex(), nil
}

func writeResult(w http.ResponseWriter, id json.RawMessage, result interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(response{JSONRPC: "2.0", Result: result, ID: id})
}

func writeError(w http.ResponseWriter, id json.RawMessage, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(response{JSONRPC: "2.0", Error: &rpcError{Code: code, Message: msg}, ID: id})
}
