package vision

const systemPrompt = `You read charts and tables out of Federal Reserve survey documents and FOMC projection materials. You answer with a single JSON object and nothing else: no markdown fences, no commentary. When a value cannot be read confidently, use null and explain in the reason field.`

const percentilePrompt = `Find the table reporting the expected LONGER RUN (or "long run") level of the TARGET FEDERAL FUNDS RATE from survey responses.

Careful: these documents often show two similar columns for the same question. Use the "modal point estimate" (most likely value) column, NOT the "expected value" or "average" column, when both appear.

Report the 25th percentile, median, and 75th percentile of the longer-run responses, in percent. Also report the survey month and year if printed on the document, and the 1-based page number the table appears on.

Respond with exactly this JSON shape:
{"found": true, "pctl25": 2.88, "pctl50": 3.13, "pctl75": 3.38, "survey_month": 6, "survey_year": 2024, "page": 4, "reason": ""}

If the longer-run federal funds question is not in this document, respond:
{"found": false, "pctl25": null, "pctl50": null, "pctl75": null, "survey_month": null, "survey_year": null, "page": null, "reason": "why not"}`

const dotPlotPrompt = `This document contains the FOMC "dot plot": each participant's judgment of the appropriate federal funds rate is one mark, plotted per target year and for the LONGER RUN.

Count the marks in the LONGER RUN column ONLY. Ignore every year column. Report a mapping from rate level (in percent, as printed on the axis) to the number of marks at that level, the meeting date if printed, the total number of participants, and the 1-based page number of the chart.

Respond with exactly this JSON shape:
{"found": true, "meeting_date": "2024-06-12", "longer_run_dots": {"2.50": 2, "2.75": 5, "3.00": 8}, "total_participants": 19, "page": 2, "reason": ""}

If there is no dot plot in this document, respond:
{"found": false, "meeting_date": null, "longer_run_dots": null, "total_participants": null, "page": null, "reason": "why not"}`
