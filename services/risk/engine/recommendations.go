// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package engine

import "github.com/AleutianAI/AleutianRisk/services/risk/datatypes"

// Recommendations maps risk tiers to operator guidance.
var Recommendations = map[datatypes.RiskTier]string{
	datatypes.TierLow:      "Low risk. Maintain current posture; reassess on the weekly cadence.",
	datatypes.TierModerate: "Moderate risk. Review open findings and plan remediation within the next sprint.",
	datatypes.TierHigh:     "High risk. Prioritize remediation of high-CVSS findings and weak control categories this week.",
	datatypes.TierCritical: "Critical risk. Begin remediation immediately and restrict exposure until findings are mitigated.",
}
