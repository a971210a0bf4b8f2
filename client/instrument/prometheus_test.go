// SPDX-FileCopyrightText: Copyright (C) 2026  Katzenpost contributors
// SPDX-License-Identifier: AGPL-3.0-only

package instrument

import (
	"io"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/katzenpost/backup/core/log"
	"github.com/katzenpost/backup/core/wire/commands"
)

func TestPrometheusListener(t *testing.T) {
	require := require.New(t)

	logBackend, err := log.New("", "DEBUG", true)
	require.NoError(err)

	srv, err := StartPrometheusListener("127.0.0.1:0", logBackend.GetLogger("metrics"))
	require.NoError(err)
	defer srv.Close()

	Request(commands.FileSendCode)
	Response(commands.FileCRC)
	Retry("Transfer")
	CRCMismatch()

	resp, err := http.Get("http://" + srv.Addr + "/metrics")
	require.NoError(err)
	defer resp.Body.Close()
	require.Equal(http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(err)
	require.Contains(string(body), `backup_requests_total{code="FileSend"}`)
	require.Contains(string(body), `backup_responses_total{code="FileCRC"}`)
	require.Contains(string(body), `backup_retries_total{state="Transfer"}`)
	require.Contains(string(body), "backup_crc_mismatches_total")
}
